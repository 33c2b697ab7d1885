package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitDefaults(t *testing.T) {
	c := Init()
	assert.Equal(t, ":8080", c.ServerAddr)
	assert.Equal(t, "forum-activity", c.KafkaTopic)
	assert.Equal(t, 14*24*time.Hour, c.SessionTTL)
	assert.True(t, c.DatabaseMigrations)
	assert.Same(t, c, Get())
}

func TestInitReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("KAFKA_PARTITION", "3")

	c := Init()
	assert.Equal(t, ":9999", c.ServerAddr)
	assert.Equal(t, time.Hour, c.SessionTTL)
	assert.Equal(t, 3, c.KafkaPartition)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDuration("nonsense", 5*time.Second))
	assert.Equal(t, 2*time.Minute, parseDuration("2m", time.Second))
}
