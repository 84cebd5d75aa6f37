package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("ZOOKEEPER_HOST", "zk-1:2181, zk-2:2181")
	t.Setenv("ZOOKEEPER_USER", "zk-admin")
	t.Setenv("ZOOKEEPER_PW", "password")
	t.Setenv("KAFKA_SECRET", "supersecret")
	t.Setenv("ZK_LAG_TIME", "5s")
	t.Setenv("DEBUG", "true")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"zk-1:2181", "zk-2:2181"}, s.ZookeeperHosts)
	assert.Equal(t, "zk-admin", s.ZookeeperUser)
	assert.Equal(t, "password", s.ZookeeperPassword)
	assert.Equal(t, "supersecret", s.KafkaSecret)
	assert.Equal(t, 5*time.Second, s.SettleDelay)
	assert.True(t, s.Debug)
	require.NoError(t, s.RequireZookeeper())
	require.NoError(t, s.RequireKafkaSecret())
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, s.SettleDelay)
	assert.Empty(t, s.JournalPath)
}

func TestBareSecondsDelay(t *testing.T) {
	t.Setenv("ZK_LAG_TIME", "3")
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, s.SettleDelay)
}

func TestInvalidDelay(t *testing.T) {
	t.Setenv("ZK_LAG_TIME", "soon")
	_, err := Load()
	require.ErrorContains(t, err, "ZK_LAG_TIME")
}

func TestRequireZookeeper(t *testing.T) {
	t.Setenv("ZOOKEEPER_HOST", "zk-1:2181")
	s, err := Load()
	require.NoError(t, err)
	err = s.RequireZookeeper()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZOOKEEPER_USER")
	assert.Contains(t, err.Error(), "ZOOKEEPER_PW")
	assert.NotContains(t, err.Error(), "ZOOKEEPER_HOST")
}

func TestRequireKafkaSecret(t *testing.T) {
	s := Settings{}
	require.ErrorContains(t, s.RequireKafkaSecret(), "KAFKA_SECRET")
}
