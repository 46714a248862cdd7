// Package model contains the persisted record shapes passed between layers.
package model

import (
	"sort"
	"strings"
	"time"
)

// Member is a club member as stored in the record store.
// ParticipationCount is always kept equal to len(AttendedDates).
type Member struct {
	ID                 string   `json:"id" bson:"_id,omitempty"`
	Name               string   `json:"name" bson:"name"`
	Group              string   `json:"group" bson:"group"`
	ParticipationCount int      `json:"participation_count" bson:"participation_count"`
	AttendedDates      []string `json:"attended_dates" bson:"attended_dates"`
}

// HasDate reports whether the member already has the given ISO date.
func (m *Member) HasDate(isoDate string) bool {
	for _, d := range m.AttendedDates {
		if d == isoDate {
			return true
		}
	}
	return false
}

// AddDate appends isoDate if not already present and keeps the count in sync.
// Returns true if the set changed.
func (m *Member) AddDate(isoDate string) bool {
	if m.HasDate(isoDate) {
		return false
	}
	m.AttendedDates = append(m.AttendedDates, isoDate)
	m.ParticipationCount = len(m.AttendedDates)
	return true
}

// RemoveDate drops isoDate if present and keeps the count in sync.
// Returns true if the set changed.
func (m *Member) RemoveDate(isoDate string) bool {
	kept := m.AttendedDates[:0:0]
	for _, d := range m.AttendedDates {
		if d != isoDate {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(m.AttendedDates) {
		return false
	}
	m.AttendedDates = kept
	m.ParticipationCount = len(kept)
	return true
}

// StripPeriod removes every attended date carrying the given "YYYY-" prefix
// and recomputes the count. Returns true if the set changed.
func (m *Member) StripPeriod(prefix string) bool {
	kept := m.AttendedDates[:0:0]
	for _, d := range m.AttendedDates {
		if !strings.HasPrefix(d, prefix) {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(m.AttendedDates) {
		return false
	}
	m.AttendedDates = kept
	m.ParticipationCount = len(kept)
	return true
}

// DatesInPeriod returns the sorted subset of attended dates carrying the prefix.
func (m *Member) DatesInPeriod(prefix string) []string {
	var out []string
	for _, d := range m.AttendedDates {
		if strings.HasPrefix(d, prefix) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy so snapshot mutations never alias store state.
func (m *Member) Clone() *Member {
	c := *m
	c.AttendedDates = append([]string(nil), m.AttendedDates...)
	return &c
}

// Event is a club outing on a single calendar date. ISODate is unique within
// the store: at most one event per date. The descriptive fields are edited by
// operators and never touched by reconciliation.
type Event struct {
	ID          string `json:"id" bson:"_id,omitempty"`
	ISODate     string `json:"iso_date" bson:"iso_date"`
	Location    string `json:"location" bson:"location"`
	Distance    string `json:"distance,omitempty" bson:"distance,omitempty"`
	MeetingTime string `json:"meeting_time,omitempty" bson:"meeting_time,omitempty"`
	Address     string `json:"address,omitempty" bson:"address,omitempty"`

	// FromImport marks events machine-created by a spreadsheet import.
	FromImport bool `json:"from_import,omitempty" bson:"from_import,omitempty"`
}

// Clone returns a copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	return &c
}

// AttendanceEntry is one member's presence at one event.
type AttendanceEntry struct {
	Name     string    `json:"name" bson:"name"`
	Group    string    `json:"group" bson:"group"`
	MarkedAt time.Time `json:"marked_at" bson:"marked_at"`
}

// AttendanceRecord holds the full member set for one event. The set is always
// replaced whole, never merged, so re-importing a period is idempotent.
type AttendanceRecord struct {
	EventID string                     `json:"event_id" bson:"_id"`
	ISODate string                     `json:"iso_date" bson:"iso_date"`
	Entries map[string]AttendanceEntry `json:"entries" bson:"entries"`
}

// NewAttendanceRecord returns an empty record for the event.
func NewAttendanceRecord(eventID, isoDate string) *AttendanceRecord {
	return &AttendanceRecord{
		EventID: eventID,
		ISODate: isoDate,
		Entries: make(map[string]AttendanceEntry),
	}
}

// OpKind discriminates write operations flowing through the write pump.
type OpKind string

const (
	OpCreateMember  OpKind = "create_member"
	OpUpdateMember  OpKind = "update_member"
	OpCreateEvent   OpKind = "create_event"
	OpPutAttendance OpKind = "put_attendance"
)

// WriteOp is a single pending record-store mutation. Exactly one payload
// field matching Kind is set.
type WriteOp struct {
	Kind       OpKind
	Member     *Member
	Event      *Event
	Attendance *AttendanceRecord
}

// Label identifies the op in error messages and logs.
func (op WriteOp) Label() string {
	switch op.Kind {
	case OpCreateMember, OpUpdateMember:
		if op.Member != nil {
			return string(op.Kind) + " " + op.Member.Name
		}
	case OpCreateEvent:
		if op.Event != nil {
			return string(op.Kind) + " " + op.Event.ISODate
		}
	case OpPutAttendance:
		if op.Attendance != nil {
			return string(op.Kind) + " " + op.Attendance.ISODate
		}
	}
	return string(op.Kind)
}
