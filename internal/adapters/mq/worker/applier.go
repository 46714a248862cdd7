package worker

import (
	"context"
	"fmt"

	"github.com/veloclub/sortie/internal/adapters/recordstore"
	"github.com/veloclub/sortie/internal/domain/model"
)

// StoreApplier applies write ops against a record store.
type StoreApplier struct {
	store recordstore.Store
}

// NewStoreApplier wraps the store for the pump.
func NewStoreApplier(store recordstore.Store) *StoreApplier {
	return &StoreApplier{store: store}
}

// Apply dispatches the op to the matching store call.
func (a *StoreApplier) Apply(ctx context.Context, op Op) error {
	switch op.Kind {
	case model.OpCreateMember:
		return a.store.CreateMember(ctx, op.Member)
	case model.OpUpdateMember:
		return a.store.UpdateMember(ctx, op.Member)
	case model.OpCreateEvent:
		return a.store.CreateEvent(ctx, op.Event)
	case model.OpPutAttendance:
		return a.store.PutAttendance(ctx, op.Attendance)
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}
