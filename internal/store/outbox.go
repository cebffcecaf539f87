package store

import (
	"context"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
)

// InsertOutboxEvent records a domain event in the same transaction as
// the state change it describes. The relay worker publishes it later.
func (t *sqlTx) InsertOutboxEvent(ctx context.Context, eventID, eventType string, payload []byte) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO outbox_events (event_id, event_type, payload) VALUES ($1, $2, $3)",
		eventID, eventType, payload)
	return err
}

// FetchUnpublishedEvents returns outbox rows awaiting publication,
// oldest first, for the relay worker.
func (s *Store) FetchUnpublishedEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM outbox_events WHERE published_at IS NULL ORDER BY id LIMIT $1", limit)
	return events, err
}

// MarkEventPublished stamps an outbox row after a successful publish.
func (s *Store) MarkEventPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET published_at = NOW() WHERE id = $1", id)
	return err
}
