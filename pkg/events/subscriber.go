package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pitabwire/util"
)

// Relay implements frame's queue subscribe worker. Envelopes published by
// other instances are fanned out to this instance's local subscribers.
type Relay struct {
	Publisher *Publisher
}

// Handle is called by frame's pub/sub for each event message.
func (r *Relay) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("event relay: unmarshal envelope")
		return err
	}

	slog.DebugContext(ctx, "event relay: received",
		slog.String("event_type", string(env.Type)),
		slog.String("event_id", env.ID))

	if env.Source == r.Publisher.source {
		return nil
	}
	r.Publisher.fanOut(ctx, env)
	return nil
}
