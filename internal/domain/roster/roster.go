// Package roster resolves spreadsheet identities against the record store.
//
// A Snapshot is built exactly once per reconciliation run from the full
// member and event lists. Lookups and creations all go through the same
// snapshot, so two rows naming the same unknown member or date resolve to
// one newly defined record instead of creating duplicates.
package roster

import (
	"strings"

	"github.com/google/uuid"

	"github.com/veloclub/sortie/internal/domain/model"
)

// Defaults applied to records defined during an import.
const (
	defaultGroup       = "Route"
	defaultLocation    = "départ club"
	defaultMeetingTime = "08:30"
)

// Option applies a configuration option to the Snapshot.
type Option func(*Snapshot)

// WithDefaultGroup sets the group assigned to new members whose row has a
// blank group cell.
func WithDefaultGroup(group string) Option {
	return func(s *Snapshot) {
		if group != "" {
			s.defaultGroup = group
		}
	}
}

// WithEventDefaults sets the location and meeting time stamped on events
// machine-created from an import.
func WithEventDefaults(location, meetingTime string) Option {
	return func(s *Snapshot) {
		if location != "" {
			s.defaultLocation = location
		}
		if meetingTime != "" {
			s.defaultMeetingTime = meetingTime
		}
	}
}

// Snapshot is the in-memory view of all members and events for one run.
type Snapshot struct {
	defaultGroup       string
	defaultLocation    string
	defaultMeetingTime string

	membersByKey map[string]*model.Member
	eventsByDate map[string]*model.Event
}

// NewSnapshot indexes the given records. The slices are cloned; mutating the
// snapshot never aliases caller state.
func NewSnapshot(members []model.Member, events []model.Event, opts ...Option) *Snapshot {
	s := &Snapshot{
		defaultGroup:       defaultGroup,
		defaultLocation:    defaultLocation,
		defaultMeetingTime: defaultMeetingTime,
		membersByKey:       make(map[string]*model.Member, len(members)),
		eventsByDate:       make(map[string]*model.Event, len(events)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range members {
		m := members[i].Clone()
		s.membersByKey[NameKey(m.Name)] = m
	}
	for i := range events {
		e := events[i].Clone()
		s.eventsByDate[e.ISODate] = e
	}
	return s
}

// NameKey normalizes a display name into the case-insensitive lookup key.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MemberKey builds the lookup key for a first/last name pair.
func MemberKey(first, last string) string {
	return NameKey(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// ResolveMember finds the member for the name pair, or defines a new one
// with a fresh ID, zero participation and the row's group (falling back to
// the configured default when blank). The second return reports creation.
func (s *Snapshot) ResolveMember(first, last, group string) (*model.Member, bool) {
	key := MemberKey(first, last)
	if m, ok := s.membersByKey[key]; ok {
		return m, false
	}
	g := strings.TrimSpace(group)
	if g == "" {
		g = s.defaultGroup
	}
	m := &model.Member{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last)),
		Group: g,
	}
	s.membersByKey[key] = m
	return m, true
}

// ResolveEvent finds the event for the ISO date, or defines a new one with
// the configured defaults and the import marker set.
func (s *Snapshot) ResolveEvent(isoDate string) (*model.Event, bool) {
	if e, ok := s.eventsByDate[isoDate]; ok {
		return e, false
	}
	e := &model.Event{
		ID:          uuid.NewString(),
		ISODate:     isoDate,
		Location:    s.defaultLocation,
		MeetingTime: s.defaultMeetingTime,
		FromImport:  true,
	}
	s.eventsByDate[isoDate] = e
	return e, true
}

// Members returns every member in the snapshot, including ones defined
// during the run.
func (s *Snapshot) Members() []*model.Member {
	out := make([]*model.Member, 0, len(s.membersByKey))
	for _, m := range s.membersByKey {
		out = append(out, m)
	}
	return out
}

// EventsInPeriod returns the events whose date carries the period prefix.
func (s *Snapshot) EventsInPeriod(prefix string) []*model.Event {
	var out []*model.Event
	for _, e := range s.eventsByDate {
		if strings.HasPrefix(e.ISODate, prefix) {
			out = append(out, e)
		}
	}
	return out
}
