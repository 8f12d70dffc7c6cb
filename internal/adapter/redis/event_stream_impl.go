package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/user/site-auditor/internal/entity"
)

// maxStreamLen caps the stream; trimming is approximate.
const maxStreamLen = 100000

// EventStreamImpl publishes report events to a Redis stream so dashboards can
// follow an audit while it runs.
type EventStreamImpl struct {
	client *redis.Client
	stream string
}

func NewEventStream(client *redis.Client, stream string) *EventStreamImpl {
	return &EventStreamImpl{client: client, stream: stream}
}

// Emit implements repository.ReportSink.
func (s *EventStreamImpl) Emit(ctx context.Context, event entity.ReportEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"run_id": event.RunID,
			"check":  string(event.Check),
			"status": string(event.Status),
			"event":  payload,
		},
	}).Err()
}
