package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/intent-gateway/internal/config"
)

func TestAuditConsumerDefaults(t *testing.T) {
	c := NewAuditConsumer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	defer c.Close()

	rc := c.r.Config()
	assert.Equal(t, defaultAuditTopic, rc.Topic)
	assert.Equal(t, defaultAuditGroup, rc.GroupID)
	assert.Equal(t, 1<<10, rc.MinBytes)
	assert.Equal(t, 10<<20, rc.MaxBytes)
	assert.Zero(t, rc.CommitInterval)
}

func TestAuditConsumerUsesConfig(t *testing.T) {
	c := NewAuditConsumer(config.KafkaConfig{
		Brokers:        []string{"127.0.0.1:1"},
		AuditTopic:     "audit.v2",
		GroupID:        "sink-b",
		CommitInterval: 500,
	})
	defer c.Close()

	rc := c.r.Config()
	assert.Equal(t, "audit.v2", rc.Topic)
	assert.Equal(t, "sink-b", rc.GroupID)
	assert.Equal(t, 500*time.Millisecond, rc.CommitInterval)
}

func TestCommitNothingIsNoop(t *testing.T) {
	c := NewAuditConsumer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}})
	defer c.Close()
	require.NoError(t, c.Commit(context.Background()))
}
