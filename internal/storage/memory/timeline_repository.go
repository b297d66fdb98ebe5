package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/resale/internal/domain"
)

type timelineRepository struct {
	store *Store
}

// Append добавляет событие; при пустом Occurred подставляется текущее время.
func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	return r.store.write(ctx, func(st *state) error {
		st.timeline = append(st.timeline, event)
		return nil
	})
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	events := make([]domain.TimelineEvent, 0)
	err := r.store.read(ctx, func(st *state) error {
		for _, e := range st.timeline {
			if e.OrderID == orderID {
				events = append(events, e)
			}
		}
		return nil
	})
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	return events, err
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
