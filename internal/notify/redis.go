package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel notifications are published on.
const DefaultRedisChannel = "bumpfeed:notifications"

// redisPublishTimeout bounds a single publish so Add never stalls the caller.
const redisPublishTimeout = 2 * time.Second

// Publisher is the subset of *redis.Client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisEvent is the JSON document published for each sink call.
type RedisEvent struct {
	Action       string        `json:"action"` // "add", "remove" or "clear"
	Notification *Notification `json:"notification,omitempty"`
	ID           string        `json:"id,omitempty"`
	DeviceID     string        `json:"device_id"`
}

// RedisSink publishes notifications so the user's other devices can show them.
type RedisSink struct {
	pub      Publisher
	channel  string
	deviceID string
	logger   *slog.Logger
}

// NewRedisSink creates a sink publishing on channel. An empty channel uses
// DefaultRedisChannel.
func NewRedisSink(pub Publisher, channel, deviceID string, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{
		pub:      pub,
		channel:  channel,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Add publishes an "add" event.
func (s *RedisSink) Add(n Notification) string {
	ensureID(&n)
	s.publish(RedisEvent{Action: "add", Notification: &n, ID: n.ID, DeviceID: s.deviceID})
	return n.ID
}

// Remove publishes a "remove" event.
func (s *RedisSink) Remove(id string) {
	s.publish(RedisEvent{Action: "remove", ID: id, DeviceID: s.deviceID})
}

// Clear publishes a "clear" event.
func (s *RedisSink) Clear() {
	s.publish(RedisEvent{Action: "clear", DeviceID: s.deviceID})
}

func (s *RedisSink) publish(ev RedisEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("encode notification event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()

	if err := s.pub.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn("publish notification failed",
			"channel", s.channel,
			"action", ev.Action,
			"error", err,
		)
	}
}
