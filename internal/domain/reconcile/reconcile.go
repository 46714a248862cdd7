// Package reconcile implements the attendance reconciliation engine.
//
// A run is one pass of the state machine
//
//	LoadExisting -> ClearPeriod -> ProcessRows -> ApplyUpdates -> Done
//
// over a single period (one calendar year). The engine snapshots the record
// store once, clears the period's attendance, re-derives it from the parsed
// sheet rows and writes the result back through the write pump. Rewriting
// every touched member set whole is what makes a run idempotent: importing
// the same sheet twice leaves identical state, and dates outside the period
// are never touched.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/veloclub/sortie/internal/adapters/mq/worker"
	"github.com/veloclub/sortie/internal/adapters/recordstore"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/internal/domain/roster"
	"github.com/veloclub/sortie/internal/domain/sheet"
	"github.com/veloclub/sortie/internal/domain/types"
	"github.com/veloclub/sortie/pkg/logger"
	"github.com/veloclub/sortie/pkg/metrics"
)

// Engine orchestrates reconciliation runs. Callers must serialize runs;
// the engine assumes no concurrent writers for the duration of a run.
type Engine struct {
	store      recordstore.Store
	pump       *worker.Pump
	rosterOpts []roster.Option
	now        func() time.Time
	logger     logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRosterDefaults forwards defaults to the identity resolver.
func WithRosterDefaults(opts ...roster.Option) Option {
	return func(e *Engine) {
		e.rosterOpts = append(e.rosterOpts, opts...)
	}
}

// WithClock overrides the wall clock used for markedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a reconciliation engine writing through the pump.
func NewEngine(store recordstore.Store, pump *worker.Pump, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		pump:   pump,
		now:    time.Now,
		logger: logger.Get().Named("reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runContext carries the loaded snapshot and pending-write buffers through
// the pipeline stages.
type runContext struct {
	year   string
	prefix string

	snap     *roster.Snapshot
	baseline map[string]*model.Member // loaded members by id

	createdMembers map[string]struct{}
	createdEvents  []*model.Event

	// pendingAttendance accumulates full member sets per event id;
	// clearAttendance holds empty sets for period events absent from the
	// sheet. Both are written as whole replacements.
	pendingAttendance map[string]*model.AttendanceRecord
	clearAttendance   map[string]*model.AttendanceRecord

	summary types.Summary
}

func (rc *runContext) addError(format string, args ...any) {
	rc.summary.Errors = append(rc.summary.Errors, fmt.Sprintf(format, args...))
}

// Run reconciles the period identified by year against the sheet text.
// Only the LoadExisting stage is fatal; every later failure is accumulated
// into the summary and the run continues.
func (e *Engine) Run(ctx context.Context, csvText, year string) (types.Summary, error) {
	metrics.RecordImportRun()
	rc := &runContext{
		year:              year,
		prefix:            year + "-",
		baseline:          make(map[string]*model.Member),
		createdMembers:    make(map[string]struct{}),
		pendingAttendance: make(map[string]*model.AttendanceRecord),
		clearAttendance:   make(map[string]*model.AttendanceRecord),
		summary:           types.Summary{Year: year},
	}

	rows, issues, err := sheet.Parse(strings.NewReader(csvText), year)
	if err != nil {
		return rc.summary, fmt.Errorf("%w: %v", ErrParse, err)
	}
	for _, issue := range issues {
		rc.summary.RowsSkipped++
		rc.addError("parse: %s", issue.String())
	}

	if err := e.loadExisting(ctx, rc); err != nil {
		// No partial clearing without a complete snapshot.
		return rc.summary, fmt.Errorf("%w: %v", ErrLoadSnapshot, err)
	}
	e.clearPeriod(rc)
	if err := e.processRows(ctx, rc, rows); err != nil {
		return rc.summary, err
	}
	if err := e.applyUpdates(ctx, rc); err != nil {
		return rc.summary, err
	}

	e.logger.Info(ctx, "reconciliation run finished",
		logger.String("year", year),
		logger.Int("eventsProcessed", rc.summary.EventsProcessed),
		logger.Int("membersUpdated", rc.summary.MembersUpdated),
		logger.Int("errors", len(rc.summary.Errors)),
	)
	return rc.summary, nil
}

// loadExisting fetches all events and members once and builds the run's
// snapshot. Failure here aborts the run.
func (e *Engine) loadExisting(ctx context.Context, rc *runContext) error {
	members, err := e.store.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	events, err := e.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	rc.snap = roster.NewSnapshot(members, events, e.rosterOpts...)
	for i := range members {
		rc.baseline[members[i].ID] = members[i].Clone()
	}
	return nil
}

// clearPeriod resets the period in memory: every existing period event gets
// an empty attendance set buffered, and every member loses the period's
// dates. Superseded clears are dropped in applyUpdates once the sheet's own
// sets are known.
func (e *Engine) clearPeriod(rc *runContext) {
	for _, ev := range rc.snap.EventsInPeriod(rc.prefix) {
		rc.clearAttendance[ev.ID] = model.NewAttendanceRecord(ev.ID, ev.ISODate)
	}
	for _, m := range rc.snap.Members() {
		m.StripPeriod(rc.prefix)
	}
}

// processRows resolves each parsed row against the snapshot and accumulates
// pending attendance. Cancellation is honored between rows.
func (e *Engine) processRows(ctx context.Context, rc *runContext, rows []sheet.Row) error {
	markedAt := e.now()
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		member, created := rc.snap.ResolveMember(row.FirstName, row.LastName, row.Group)
		if created {
			rc.createdMembers[member.ID] = struct{}{}
			rc.summary.MembersCreated++
		}
		for _, isoDate := range row.PresentDates {
			event, created := rc.snap.ResolveEvent(isoDate)
			if created {
				rc.createdEvents = append(rc.createdEvents, event)
				rc.summary.EventsCreated++
			}
			rec := rc.pendingAttendance[event.ID]
			if rec == nil {
				rec = model.NewAttendanceRecord(event.ID, isoDate)
				rc.pendingAttendance[event.ID] = rec
			}
			rec.Entries[member.ID] = model.AttendanceEntry{
				Name:     member.Name,
				Group:    member.Group,
				MarkedAt: markedAt,
			}
			// AddDate ignores duplicate columns for the same date.
			member.AddDate(isoDate)
		}
	}
	return nil
}

// applyUpdates flushes the buffers in two phases: all event and attendance
// writes drain before member updates, so member state is derived from final
// attendance.
func (e *Engine) applyUpdates(ctx context.Context, rc *runContext) error {
	// Phase one: created events, rewritten sets, then clears for period
	// events the sheet no longer covers.
	for _, ev := range rc.createdEvents {
		e.submit(ctx, rc, model.WriteOp{Kind: model.OpCreateEvent, Event: ev.Clone()})
	}
	for id, rec := range rc.pendingAttendance {
		delete(rc.clearAttendance, id)
		e.submit(ctx, rc, model.WriteOp{Kind: model.OpPutAttendance, Attendance: rec})
	}
	for _, rec := range rc.clearAttendance {
		e.submit(ctx, rc, model.WriteOp{Kind: model.OpPutAttendance, Attendance: rec})
	}
	res, err := e.pump.Drain(ctx)
	rc.collect(res)
	rc.summary.EventsProcessed = len(rc.pendingAttendance) + len(rc.clearAttendance) - res.Failed[model.OpPutAttendance]
	if err != nil {
		return err
	}

	// Phase two: members whose derived state differs from the loaded one.
	members := rc.snap.Members()
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	updates := 0
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := rc.createdMembers[m.ID]; ok {
			e.submit(ctx, rc, model.WriteOp{Kind: model.OpCreateMember, Member: m.Clone()})
			continue
		}
		if memberChanged(rc.baseline[m.ID], m) {
			updates++
			e.submit(ctx, rc, model.WriteOp{Kind: model.OpUpdateMember, Member: m.Clone()})
		}
	}
	res, err = e.pump.Drain(ctx)
	rc.collect(res)
	rc.summary.MembersUpdated = updates - res.Failed[model.OpUpdateMember]
	rc.summary.MembersCreated -= res.Failed[model.OpCreateMember]
	return err
}

func (e *Engine) submit(ctx context.Context, rc *runContext, op model.WriteOp) {
	if !e.pump.Submit(ctx, op) {
		metrics.RecordImportError()
		rc.addError("%s: %v", op.Label(), ErrBackpressure)
	}
}

func (rc *runContext) collect(res worker.Result) {
	for _, msg := range res.Errors {
		metrics.RecordImportError()
		rc.addError("store: %s", msg)
	}
}

// memberChanged compares the derived member against the loaded baseline on
// the fields reconciliation owns.
func memberChanged(before, after *model.Member) bool {
	if before == nil {
		return true
	}
	if before.ParticipationCount != after.ParticipationCount {
		return true
	}
	if len(before.AttendedDates) != len(after.AttendedDates) {
		return true
	}
	seen := make(map[string]struct{}, len(before.AttendedDates))
	for _, d := range before.AttendedDates {
		seen[d] = struct{}{}
	}
	for _, d := range after.AttendedDates {
		if _, ok := seen[d]; !ok {
			return true
		}
	}
	return false
}
