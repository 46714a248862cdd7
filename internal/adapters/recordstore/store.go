// Package recordstore defines the record store port and its implementations.
//
// The store exposes nothing beyond get/list/create/update/delete by id: the
// reconciliation engine snapshots whole collections once per run and does
// its own keying, so no query language is needed.
package recordstore

import (
	"context"

	"github.com/veloclub/sortie/internal/domain/model"
)

// Store provides durable access to members, events and attendance records.
// Implementations must be safe for concurrent use; the write pump issues
// parallel per-entity writes.
type Store interface {
	// ListMembers returns all members.
	ListMembers(ctx context.Context) ([]model.Member, error)
	// GetMember returns the member by id, or ErrNotFound.
	GetMember(ctx context.Context, id string) (model.Member, error)
	// CreateMember persists a new member, assigning an ID when empty.
	CreateMember(ctx context.Context, m *model.Member) error
	// UpdateMember replaces the stored member, or ErrNotFound.
	UpdateMember(ctx context.Context, m *model.Member) error
	// DeleteMember removes the member by id, or ErrNotFound.
	DeleteMember(ctx context.Context, id string) error

	// ListEvents returns all events.
	ListEvents(ctx context.Context) ([]model.Event, error)
	// GetEvent returns the event by id, or ErrNotFound.
	GetEvent(ctx context.Context, id string) (model.Event, error)
	// CreateEvent persists a new event, assigning an ID when empty.
	// At most one event may exist per ISO date; a second create for the
	// same date fails with ErrDuplicateDate.
	CreateEvent(ctx context.Context, e *model.Event) error
	// UpdateEvent replaces the stored event, or ErrNotFound.
	UpdateEvent(ctx context.Context, e *model.Event) error
	// DeleteEvent removes the event and its attendance record.
	DeleteEvent(ctx context.Context, id string) error

	// GetAttendance returns the attendance record keyed by event id, or
	// ErrNotFound when the event has no record yet.
	GetAttendance(ctx context.Context, eventID string) (model.AttendanceRecord, error)
	// PutAttendance writes the record as a full replacement of the
	// event's member set.
	PutAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	// DeleteAttendance removes the record; deleting a missing record is
	// not an error.
	DeleteAttendance(ctx context.Context, eventID string) error

	// Close releases underlying resources.
	Close() error
}
