package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"poolpay/pkg/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("POOLPAY_ADDR", "")
	t.Setenv("POOLPAY_ENV", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("POOLPAY_REGISTRY_REF", "")
	t.Setenv("POOLPAY_FOREIGN_REGISTRIES", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, TokenTTL, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, domain.RegistryRef("local"), cfg.RegistryRef)
	assert.Empty(t, cfg.ForeignRegistries)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("POOLPAY_ADDR", ":9090")
	t.Setenv("POOLPAY_ENV", "production")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("POOLPAY_REGISTRY_REF", "eu-west")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, domain.RegistryRef("eu-west"), cfg.RegistryRef)
}

func TestParseRegistries(t *testing.T) {
	t.Run("parses ref=url pairs", func(t *testing.T) {
		got := parseRegistries("alpha=http://alpha:8080, beta=http://beta:8080")
		assert.Equal(t, map[domain.RegistryRef]string{
			"alpha": "http://alpha:8080",
			"beta":  "http://beta:8080",
		}, got)
	})

	t.Run("skips malformed pairs", func(t *testing.T) {
		got := parseRegistries("alpha=http://alpha:8080,nourl,=http://orphan,trailing=")
		assert.Equal(t, map[domain.RegistryRef]string{
			"alpha": "http://alpha:8080",
		}, got)
	})

	t.Run("empty input yields empty map", func(t *testing.T) {
		assert.Empty(t, parseRegistries(""))
	})
}
