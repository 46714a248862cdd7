// Package scoring computes the yearly participation ranking from member
// attendance sets.
//
// The counting rule credits weekend outings at most once per ISO calendar
// week: a member riding both Saturday and Sunday of the same week earns one
// credited outing, not two. Weekday outings each count individually. The
// rule is isolated in CreditedCount so it can be tested on its own.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/internal/domain/types"
)

const isoDateLayout = "2006-01-02"

// bucketBound is one distribution slice; Max < 0 means open-ended.
type bucketBound struct {
	label string
	min   int
	max   int
}

// defaultBuckets are the fixed distribution boundaries used by the club's
// yearly report.
var defaultBuckets = []bucketBound{
	{label: "0", min: 0, max: 0},
	{label: "1-5", min: 1, max: 5},
	{label: "6-10", min: 6, max: 10},
	{label: "11-20", min: 11, max: 20},
	{label: "21-30", min: 21, max: 30},
	{label: "31-40", min: 31, max: 40},
	{label: "41+", min: 41, max: -1},
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBuckets overrides the distribution boundaries. Bounds must be
// contiguous and ascending; the last entry may be open-ended (max < 0).
func WithBuckets(bounds []types.Bucket) Option {
	return func(e *Engine) {
		if len(bounds) == 0 {
			return
		}
		bb := make([]bucketBound, len(bounds))
		for i, b := range bounds {
			bb[i] = bucketBound{label: b.Label, min: b.Min, max: b.Max}
		}
		e.buckets = bb
	}
}

// Engine computes scoreboards from member records.
type Engine struct {
	buckets []bucketBound
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		buckets: defaultBuckets,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// weekKey identifies the ISO-8601 calendar week of t, e.g. "2026-W01".
// Week 1 is the week containing the year's first Thursday; weeks start on
// Monday, so a Sunday belongs to the week opened by the previous Monday.
func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// CreditedCount applies the counting rule to a set of ISO dates:
// distinct ISO weeks among weekend dates, plus distinct weekday dates.
// Duplicate and unparseable dates are ignored.
func CreditedCount(dates []string) int {
	weekendWeeks := make(map[string]struct{})
	weekdays := make(map[string]struct{})
	for _, d := range dates {
		t, err := time.Parse(isoDateLayout, d)
		if err != nil {
			continue
		}
		if isWeekend(t) {
			weekendWeeks[weekKey(t)] = struct{}{}
		} else {
			weekdays[d] = struct{}{}
		}
	}
	return len(weekendWeeks) + len(weekdays)
}

// Compute builds the scoreboard for one year from the full member list.
// Members with no dates in the year appear with a zero count: they stay in
// the ranking, the total member count and the zero bucket, but are excluded
// from group stats and the active count.
func (e *Engine) Compute(year string, members []model.Member) types.Scoreboard {
	prefix := year + "-"

	// Year-wide observed dates feed the possible-credits denominator.
	allWeekendWeeks := make(map[string]struct{})
	allWeekdays := make(map[string]struct{})

	entries := make([]types.ScoreEntry, 0, len(members))
	for i := range members {
		m := &members[i]
		dates := m.DatesInPeriod(prefix)
		for _, d := range dates {
			t, err := time.Parse(isoDateLayout, d)
			if err != nil {
				continue
			}
			if isWeekend(t) {
				allWeekendWeeks[weekKey(t)] = struct{}{}
			} else {
				allWeekdays[d] = struct{}{}
			}
		}
		entries = append(entries, types.ScoreEntry{
			MemberID:      m.ID,
			Name:          m.Name,
			Group:         m.Group,
			CreditedCount: CreditedCount(dates),
		})
	}

	total := len(allWeekendWeeks) + len(allWeekdays)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreditedCount != entries[j].CreditedCount {
			return entries[i].CreditedCount > entries[j].CreditedCount
		}
		return entries[i].Name < entries[j].Name
	})

	active := 0
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Percent = percentOf(entries[i].CreditedCount, total)
		if entries[i].CreditedCount > 0 {
			active++
		}
	}

	return types.Scoreboard{
		Year:                 year,
		Entries:              entries,
		GroupStats:           e.groupStats(entries),
		Buckets:              e.distribution(entries),
		TotalPossibleCredits: total,
		TotalMembers:         len(entries),
		ActiveMembers:        active,
	}
}

// percentOf returns credited/total as a percentage with one decimal place.
func percentOf(credited, total int) float64 {
	if total == 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(credited) * 100).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
	f, _ := p.Float64()
	return f
}

// groupStats aggregates active members per group with an integer-rounded
// average credited count, ordered by group name.
func (e *Engine) groupStats(entries []types.ScoreEntry) []types.GroupStat {
	type agg struct {
		count int
		sum   int
	}
	byGroup := make(map[string]*agg)
	for _, entry := range entries {
		if entry.CreditedCount == 0 {
			continue
		}
		a := byGroup[entry.Group]
		if a == nil {
			a = &agg{}
			byGroup[entry.Group] = a
		}
		a.count++
		a.sum += entry.CreditedCount
	}

	stats := make([]types.GroupStat, 0, len(byGroup))
	for g, a := range byGroup {
		avg := decimal.NewFromInt(int64(a.sum)).
			Div(decimal.NewFromInt(int64(a.count))).
			Round(0)
		stats = append(stats, types.GroupStat{
			Group:          g,
			ActiveMembers:  a.count,
			AverageCredits: int(avg.IntPart()),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Group < stats[j].Group })
	return stats
}

// distribution counts every entry into exactly one bucket.
func (e *Engine) distribution(entries []types.ScoreEntry) []types.Bucket {
	buckets := make([]types.Bucket, len(e.buckets))
	for i, b := range e.buckets {
		buckets[i] = types.Bucket{Label: b.label, Min: b.min, Max: b.max}
	}
	for _, entry := range entries {
		for i := range buckets {
			if entry.CreditedCount < buckets[i].Min {
				continue
			}
			if buckets[i].Max >= 0 && entry.CreditedCount > buckets[i].Max {
				continue
			}
			buckets[i].Count++
			break
		}
	}
	return buckets
}
