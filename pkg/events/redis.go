package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RedisPublisher pushes a payload onto a pub/sub channel. Satisfied by
// repository.CacheRepository.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

const redisPublishTimeout = 2 * time.Second

// RedisSink forwards bus events onto redis pub/sub, one channel per
// family, so out-of-process consumers such as notification workers can
// react without polling.
type RedisSink struct {
	publisher RedisPublisher
	prefix    string
	logger    *zap.Logger
}

// NewRedisSink constructs a RedisSink publishing under the given
// channel prefix.
func NewRedisSink(publisher RedisPublisher, prefix string, logger *zap.Logger) *RedisSink {
	if prefix == "" {
		prefix = "rewards:events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{publisher: publisher, prefix: prefix, logger: logger}
}

// Run consumes the subscription until the context is cancelled or the
// channel closes. Publish failures are logged and skipped.
func (s *RedisSink) Run(ctx context.Context, sub <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.deliver(ctx, event)
		}
	}
}

func (s *RedisSink) deliver(ctx context.Context, event Event) {
	channel := s.prefix
	if event.FamilyID != "" {
		channel = s.prefix + ":" + event.FamilyID
	}

	publishCtx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, channel, event); err != nil {
		s.logger.Warn("failed to publish event to redis",
			zap.String("channel", channel),
			zap.String("type", event.Type),
			zap.Error(err))
	}
}
