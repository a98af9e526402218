package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/PaulFidika/fleetauth/core"
)

// ResetOutbox is a core.ResetNotifier that appends reset tokens to a Redis
// stream. A mail worker consumes the stream and delivers the links.
type ResetOutbox struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

var _ core.ResetNotifier = (*ResetOutbox)(nil)

func NewResetOutbox(rdb redis.Cmdable, keyPrefix string) *ResetOutbox {
	if keyPrefix == "" {
		keyPrefix = "fleetauth:"
	}
	return &ResetOutbox{rdb: rdb, stream: keyPrefix + "reset_outbox", maxLen: 10000}
}

// Stream is the key of the outbox stream.
func (o *ResetOutbox) Stream() string { return o.stream }

func (o *ResetOutbox) SendPasswordReset(ctx context.Context, email, token string) error {
	return o.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		MaxLen: o.maxLen,
		Approx: true,
		Values: map[string]any{"email": email, "token": token},
	}).Err()
}
