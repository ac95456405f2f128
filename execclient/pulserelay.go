package execclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
)

// PulseRelay publishes execution status frames onto a Pulse stream so a
// live observer (a dashboard, a tail command) can follow a run without
// holding up Run's own return path, adapted from the teacher's
// goa-ai/features/stream/pulse/clients/pulse wrapper (Stream.Add) trimmed
// down to the one operation execclient needs.
type PulseRelay struct {
	stream *streaming.Stream
}

// NewPulseRelay opens (or creates) the named Pulse stream backed by rdb.
func NewPulseRelay(rdb *redis.Client, streamName string) (*PulseRelay, error) {
	s, err := streaming.NewStream(streamName, rdb)
	if err != nil {
		return nil, fmt.Errorf("execclient: open pulse relay stream %q: %w", streamName, err)
	}
	return &PulseRelay{stream: s}, nil
}

// Publish implements Relay.
func (r *PulseRelay) Publish(ctx context.Context, event string, payload []byte) (string, error) {
	id, err := r.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("execclient: publish relay event %q: %w", event, err)
	}
	return id, nil
}
