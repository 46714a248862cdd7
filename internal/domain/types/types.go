// Package types contains the read-side shapes returned by queries and runs.
package types

// ScoreEntry is one member's position in the yearly participation ranking.
type ScoreEntry struct {
	Rank          int    `json:"rank"`
	MemberID      string `json:"member_id"`
	Name          string `json:"name"`
	Group         string `json:"group"`
	CreditedCount int    `json:"credited_count"`
	// Percent is CreditedCount over the year's total possible credits,
	// rounded to one decimal place.
	Percent float64 `json:"percent"`
}

// GroupStat aggregates active members of one group.
type GroupStat struct {
	Group string `json:"group"`
	// ActiveMembers counts members of the group with CreditedCount > 0.
	ActiveMembers int `json:"active_members"`
	// AverageCredits is the integer-rounded mean credited count of the
	// group's active members.
	AverageCredits int `json:"average_credits"`
}

// Bucket is one slice of the credited-count distribution. Max < 0 means
// the bucket is open-ended.
type Bucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// Scoreboard is the full scoring output for one year.
type Scoreboard struct {
	Year                 string       `json:"year"`
	Entries              []ScoreEntry `json:"entries"`
	GroupStats           []GroupStat  `json:"group_stats"`
	Buckets              []Bucket     `json:"buckets"`
	TotalPossibleCredits int          `json:"total_possible_credits"`
	TotalMembers         int          `json:"total_members"`
	ActiveMembers        int          `json:"active_members"`
}

// Summary reports the outcome of one reconciliation run. Errors carry
// row- and entity-level failures; they never abort the run.
type Summary struct {
	Year            string   `json:"year"`
	EventsProcessed int      `json:"events_processed"`
	EventsCreated   int      `json:"events_created"`
	MembersCreated  int      `json:"members_created"`
	MembersUpdated  int      `json:"members_updated"`
	RowsSkipped     int      `json:"rows_skipped"`
	Errors          []string `json:"errors"`
}
