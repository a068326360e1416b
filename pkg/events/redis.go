package events

import (
	"context"
	"encoding/json"

	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisForwarder publishes bus events as JSON on a Redis pub/sub channel so
// a notifier outside this process can surface them.
type RedisForwarder struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisForwarder(client redis.UniversalClient, channel string) *RedisForwarder {
	return &RedisForwarder{client: client, channel: channel}
}

// Forward publishes one event.
func (f *RedisForwarder) Forward(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, b).Err()
}

// Run forwards events from ch until ctx is done. Publish errors are logged
// and do not stop forwarding.
func (f *RedisForwarder) Run(ctx context.Context, ch <-chan Event) {
	Drain(ctx, ch, func(e Event) {
		if err := f.Forward(ctx, e); err != nil {
			logger.Warnf("events: redis publish to %s failed: %v", f.channel, err)
		}
	})
}
