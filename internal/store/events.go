package store

import (
	"context"

	commonredis "baas-cache/common/redis"

	"github.com/go-redis/redis/v8"
)

// Publish 向事件流追加一条消息（通过池化连接），返回消息 id
func (s *Store) Publish(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	var id string
	err := s.do(ctx, "publish", func(conn *redis.Conn) error {
		var err error
		id, err = commonredis.PublishToStream(ctx, conn, stream, maxLen, values)
		return err
	})
	return id, err
}

// RecentEvents 事件流中最新的 count 条消息，新的在前
func (s *Store) RecentEvents(ctx context.Context, stream string, count int64) ([]commonredis.StreamMessage, error) {
	var msgs []commonredis.StreamMessage
	err := s.do(ctx, "recent_events", func(conn *redis.Conn) error {
		var err error
		msgs, err = commonredis.ReadLatest(ctx, conn, stream, count)
		return err
	})
	return msgs, err
}
