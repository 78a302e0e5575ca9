package sink

import (
	"context"
	"fmt"

	"github.com/arven/deadwatch/internal/domain"
	"github.com/arven/deadwatch/internal/storage"
)

// StoreSink persists events to the database.
type StoreSink struct {
	store *storage.Store
}

// NewStoreSink creates a sink backed by the given store.
func NewStoreSink(store *storage.Store) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver inserts the event.
func (s *StoreSink) Deliver(ctx context.Context, ev *domain.NormalizedEvent) error {
	if err := s.store.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("storing event %s: %w", ev.ID, err)
	}
	return nil
}
