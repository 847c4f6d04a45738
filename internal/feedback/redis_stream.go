package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// maxStreamLen 近似裁剪，避免 stream 无限增长
const maxStreamLen = 100000

// StreamPublisher 通过 Redis Streams 发布标注反馈
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream, logger: logger}
}

var _ Publisher = (*StreamPublisher)(nil)

// PublishLabel XADD {stream} * label_id .. source .. data {json}
func (p *StreamPublisher) PublishLabel(ctx context.Context, e LabelEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal label event: %w", err)
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"label_id": e.LabelID,
			"source":   string(e.Source),
			"data":     string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	p.logger.Debug("Published ground truth label",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("label_id", e.LabelID),
	)
	return nil
}
