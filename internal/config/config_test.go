package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "clamp", cfg.Limits.Policy)
	assert.Equal(t, "gateway.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 30*time.Second, cfg.Directory.RefreshInterval)
	require.Len(t, cfg.Plans, 4)

	free := cfg.Plans[0]
	assert.Equal(t, "free", free.ID)
	require.NotNil(t, free.DailyQuota)
	assert.EqualValues(t, 100, *free.DailyQuota)

	enterprise := cfg.Plans[3]
	assert.Nil(t, enterprise.DailyQuota)
	assert.Nil(t, enterprise.MaxResultRows)
	assert.Equal(t, []string{"*"}, enterprise.AllowedTools)

	assert.EqualValues(t, 1, cfg.Pricing.DefaultCost)
	assert.EqualValues(t, 5, cfg.Pricing.Tools["get_customer_segments"])
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
limits:
  policy: reject
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "reject", cfg.Limits.Policy)
	// untouched sections keep their defaults
	assert.Equal(t, "redis", cfg.Quota.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("INTENTGW_QUOTA_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Quota.Backend)
}
