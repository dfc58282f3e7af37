package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jmehdipour/intent-gateway/internal/config"
)

const (
	defaultAuditTopic = "gateway.audit"
	defaultAuditGroup = "intentgw-audit-sink"
)

type Message = kafka.Message

// Consumer reads audit entries published by the gateway's Kafka sink.
// Offsets are committed explicitly by the caller once entries are stored.
type Consumer struct {
	r *kafka.Reader
}

// NewAuditConsumer joins the audit-sink consumer group on the audit topic.
// A zero commit interval makes Commit wait for the broker, which is the
// default; a positive commit_interval_ms batches commits instead.
func NewAuditConsumer(cfg config.KafkaConfig) *Consumer {
	topic := cfg.AuditTopic
	if topic == "" {
		topic = defaultAuditTopic
	}
	group := cfg.GroupID
	if group == "" {
		group = defaultAuditGroup
	}
	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	var commitEvery time.Duration
	if cfg.CommitInterval > 0 {
		commitEvery = time.Duration(cfg.CommitInterval) * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: commitEvery,
		MaxWait:        250 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
	})
	return &Consumer{r: r}
}

// Fetch blocks for the next entry without committing it.
func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }
