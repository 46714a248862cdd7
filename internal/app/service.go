// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	writequeue "github.com/veloclub/sortie/internal/adapters/mq/queue"
	workerpool "github.com/veloclub/sortie/internal/adapters/mq/worker"
	"github.com/veloclub/sortie/internal/adapters/recordstore"
	"github.com/veloclub/sortie/internal/domain/dedupe"
	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/internal/domain/reconcile"
	"github.com/veloclub/sortie/internal/domain/roster"
	"github.com/veloclub/sortie/internal/domain/scoring"
	"github.com/veloclub/sortie/internal/domain/types"
	"github.com/veloclub/sortie/pkg/logger"
	"github.com/veloclub/sortie/pkg/metrics"
)

// Store driver names accepted by WithStoreDriver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Service implements the API dependencies for the attendance system.
type Service struct {
	mu sync.RWMutex

	// runMu serializes reconciliation runs. TryLock keeps a second
	// import from queueing behind a running one.
	runMu sync.Mutex

	// Core components
	store      recordstore.Store
	deduper    dedupe.Deduper
	writeQueue *writequeue.InMemoryQueue
	pump       *workerpool.Pump
	engine     *reconcile.Engine
	scorer     *scoring.Engine

	// Configuration
	storeDriver        string
	sqlitePath         string
	mongoURI           string
	mongoDatabase      string
	defaultGroup       string
	defaultLocation    string
	defaultMeetingTime string
	writerCount        int
	writeDelay         time.Duration
	queueSize          int
	dedupeSize         int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a pre-built record store, bypassing the driver
// selection. Used by tests and the importer CLI.
func WithStore(store recordstore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreDriver selects the record store backend.
func WithStoreDriver(driver string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
	}
}

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.sqlitePath = path
		}
	}
}

// WithMongo sets the connection parameters for the mongo driver.
func WithMongo(uri, database string) Option {
	return func(s *Service) {
		if uri != "" {
			s.mongoURI = uri
		}
		if database != "" {
			s.mongoDatabase = database
		}
	}
}

// WithRosterDefaults sets the values stamped on machine-created members
// and events.
func WithRosterDefaults(group, location, meetingTime string) Option {
	return func(s *Service) {
		if group != "" {
			s.defaultGroup = group
		}
		if location != "" {
			s.defaultLocation = location
		}
		if meetingTime != "" {
			s.defaultMeetingTime = meetingTime
		}
	}
}

// WithWriterCount sets the number of write pump workers.
func WithWriterCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.writerCount = count
		}
	}
}

// WithWriteDelay sets the pacing delay between record store writes.
func WithWriteDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.writeDelay = d
		}
	}
}

// WithQueueSize sets the maximum size of the write queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the request deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:        DriverMemory,
		sqlitePath:         "sortie.db",
		mongoURI:           "mongodb://localhost:27017",
		mongoDatabase:      "sortie",
		defaultGroup:       "Route",
		defaultLocation:    "départ club",
		defaultMeetingTime: "08:30",
		writerCount:        runtime.NumCPU(),
		writeDelay:         250 * time.Millisecond,
		queueSize:          10_000,
		dedupeSize:         10_000,
		logger:             nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting attendance service...")

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}
	s.logger.Info(ctx, "record store ready", logger.String("driver", s.storeDriver))

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.writeQueue = writequeue.NewInMemoryQueue(
		writequeue.WithCapacity(s.queueSize),
		writequeue.WithBufferSize(s.queueSize),
	)
	s.pump = workerpool.NewPump(
		s.writeQueue,
		workerpool.NewStoreApplier(s.store),
		workerpool.WithWorkerCount(s.writerCount),
		workerpool.WithWriteDelay(s.writeDelay),
		workerpool.WithLogger(s.logger),
	)
	s.pump.Start(ctx)

	s.engine = reconcile.NewEngine(s.store, s.pump,
		reconcile.WithRosterDefaults(
			roster.WithDefaultGroup(s.defaultGroup),
			roster.WithEventDefaults(s.defaultLocation, s.defaultMeetingTime),
		),
		reconcile.WithLogger(s.logger),
	)
	s.scorer = scoring.NewEngine()

	s.started = true
	s.logger.Info(ctx, "attendance service started",
		logger.Int("writers", s.writerCount),
		logger.Duration("writeDelay", s.writeDelay),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) (recordstore.Store, error) {
	switch s.storeDriver {
	case DriverSQLite:
		return recordstore.NewSQLiteStore(s.sqlitePath)
	case DriverMongo:
		return recordstore.NewMongoStore(ctx, s.mongoURI, s.mongoDatabase)
	case DriverMemory:
		return recordstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.storeDriver)
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping attendance service...")

	if s.pump != nil {
		s.pump.Stop()
	}
	if s.writeQueue != nil {
		_ = s.writeQueue.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "attendance service stopped")
}

// ReconcilePeriod imports a wide attendance sheet for one calendar year.
// Runs are serialized: a second call while one is in flight fails with
// reconcile.ErrRunInProgress instead of waiting.
func (s *Service) ReconcilePeriod(ctx context.Context, csvText, year string) (types.Summary, error) {
	if !s.runMu.TryLock() {
		return types.Summary{}, reconcile.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	s.mu.RLock()
	engine, started := s.engine, s.started
	s.mu.RUnlock()
	if !started {
		return types.Summary{}, errors.New("service not started")
	}

	return engine.Run(ctx, csvText, year)
}

// SetAttendance applies a single manual attendance correction. The
// event's attendance set is rewritten before the member record so a
// reader never sees a member credit without the matching entry.
func (s *Service) SetAttendance(ctx context.Context, eventID, memberID, name, group, action string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return errors.New("service not started")
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("event %s: %w", eventID, err)
	}

	member, err := s.resolveMember(ctx, memberID, name, group, action)
	if err != nil {
		return err
	}

	rec, err := s.store.GetAttendance(ctx, eventID)
	if errors.Is(err, recordstore.ErrNotFound) {
		rec = *model.NewAttendanceRecord(event.ID, event.ISODate)
	} else if err != nil {
		return fmt.Errorf("attendance %s: %w", eventID, err)
	}

	switch action {
	case "add":
		rec.Entries[member.ID] = model.AttendanceEntry{
			Name:     member.Name,
			Group:    member.Group,
			MarkedAt: time.Now().UTC(),
		}
		member.AddDate(event.ISODate)
	case "remove":
		delete(rec.Entries, member.ID)
		member.RemoveDate(event.ISODate)
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	// Attendance first, member second.
	if err := s.store.PutAttendance(ctx, &rec); err != nil {
		return fmt.Errorf("put attendance: %w", err)
	}
	if err := s.store.UpdateMember(ctx, &member); err != nil {
		return fmt.Errorf("update member: %w", err)
	}

	s.logger.Info(ctx, "attendance corrected",
		logger.String("event", event.ISODate),
		logger.String("member", member.Name),
		logger.String("action", action),
	)
	return nil
}

// resolveMember finds the member by id, or by normalized name when no id
// is given. An unknown name on an add creates the member on the spot.
func (s *Service) resolveMember(ctx context.Context, memberID, name, group, action string) (model.Member, error) {
	if memberID != "" {
		m, err := s.store.GetMember(ctx, memberID)
		if err != nil {
			return model.Member{}, fmt.Errorf("member %s: %w", memberID, err)
		}
		return m, nil
	}

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return model.Member{}, fmt.Errorf("list members: %w", err)
	}
	key := roster.NameKey(name)
	for _, m := range members {
		if roster.NameKey(m.Name) == key {
			return m, nil
		}
	}
	if action != "add" {
		return model.Member{}, fmt.Errorf("member %q: %w", name, recordstore.ErrNotFound)
	}

	if group == "" {
		group = s.defaultGroup
	}
	created := model.Member{Name: name, Group: group}
	if err := s.store.CreateMember(ctx, &created); err != nil {
		return model.Member{}, fmt.Errorf("create member: %w", err)
	}
	s.logger.Info(ctx, "member created from correction",
		logger.String("name", created.Name),
		logger.String("group", created.Group),
	)
	return created, nil
}

// Scores computes the participation scoreboard for one year.
func (s *Service) Scores(ctx context.Context, year string) (types.Scoreboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Scoreboard{}, errors.New("service not started")
	}

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return types.Scoreboard{}, fmt.Errorf("list members: %w", err)
	}
	metrics.UpdateTotalMembers(len(members))

	return s.scorer.Compute(year, members), nil
}

// Rank returns the scoreboard entry for a single member.
func (s *Service) Rank(ctx context.Context, memberID, year string) (types.ScoreEntry, error) {
	board, err := s.Scores(ctx, year)
	if err != nil {
		return types.ScoreEntry{}, err
	}
	for _, entry := range board.Entries {
		if entry.MemberID == memberID {
			return entry, nil
		}
	}
	return types.ScoreEntry{}, fmt.Errorf("member %s: %w", memberID, recordstore.ErrNotFound)
}

// Members lists all members sorted by name.
func (s *Service) Members(ctx context.Context) ([]*model.Member, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]*model.Member, len(members))
	for i := range members {
		out[i] = &members[i]
	}
	return out, nil
}

// Events lists all events sorted by date.
func (s *Service) Events(ctx context.Context) ([]*model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	metrics.UpdateTotalEvents(len(events))
	out := make([]*model.Event, len(events))
	for i := range events {
		out[i] = &events[i]
	}
	return out, nil
}

// SeenAndRecord atomically checks if a request id was seen and records it
// if not. Returns true if the request was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes a request ID from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"storeDriver": s.storeDriver,
		"writerCount": s.writerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.writeQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()

		if members, err := s.store.ListMembers(ctx); err == nil {
			stats["totalMembers"] = len(members)
			metrics.UpdateTotalMembers(len(members))
		}
		if events, err := s.store.ListEvents(ctx); err == nil {
			stats["totalEvents"] = len(events)
			metrics.UpdateTotalEvents(len(events))
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.writerCount)
	}

	return stats
}
