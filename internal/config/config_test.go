package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "CATALOG_SOURCE", "CART_STORAGE", "CART_IDLE_TTL", "KAFKA_BROKERS", "JWT_SECRET", "ADMIN_PASSWORD_HASH"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "json", cfg.CatalogSource)
	assert.Equal(t, "db", cfg.CartStorage)
	assert.Equal(t, 30*time.Minute, cfg.CartIdleTTL)
	assert.Equal(t, "img/placeholder-image.png", cfg.PlaceholderImage)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CATALOG_SOURCE", "DB")
	t.Setenv("CATALOG_TTL", "5m")
	t.Setenv("CART_IDLE_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$hash")
	t.Setenv("WHATSAPP_NUMBER", "255695557358")

	cfg := Load()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "db", cfg.CatalogSource)
	assert.Equal(t, 5*time.Minute, cfg.CatalogTTL)
	assert.Equal(t, 2*time.Hour, cfg.CartIdleTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "255695557358", cfg.WhatsAppNumber)
	assert.True(t, cfg.AdminEnabled())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "not-a-number")
	t.Setenv("X_BOOL", "true")
	t.Setenv("X_DUR", "bogus")

	assert.Equal(t, 7, EnvIntDefault("X_INT", 7))
	assert.True(t, EnvBoolDefault("X_BOOL", false))
	assert.Equal(t, time.Second, EnvDurationDefault("X_DUR", time.Second))
	assert.Equal(t, "fallback", EnvDefault("X_MISSING_KEY", "fallback"))
	assert.Nil(t, CSV(""))
}
