package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "OPERATOR_CODE", "STORE_DRIVER",
		"DATABASE_URL", "SEED_DEMO_DATA", "S3_BUCKET_NAME", "S3_ENDPOINT", "S3_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", StoreDriverMemory)
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.Port)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, "operator-dev", cfg.OperatorCode)
	assert.True(t, cfg.SeedDemoData, "the memory store seeds demo data by default")
	assert.False(t, cfg.StorageEnabled())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("OPERATOR_CODE", "c")
	t.Setenv("STORE_DRIVER", StoreDriverMemory)
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", StoreDriverPostgres)
	t.Setenv("DATABASE_URL", "postgres://db")
	t.Setenv("S3_BUCKET_NAME", "avatars")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_ENDPOINT")

	t.Setenv("S3_ENDPOINT", "https://s3.test")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.StorageEnabled())
	assert.False(t, cfg.SeedDemoData)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("PORT", "80")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PORT", "8080")
	t.Setenv("STORE_DRIVER", "mysql")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("STORE_DRIVER", StoreDriverMemory)
	t.Setenv("SEED_DEMO_DATA", "maybe")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("HOTELCHAT_API_URL", "http://api.test/")
	t.Setenv("HOTELCHAT_PROFILE", "work")
	t.Setenv("HOTELCHAT_SESSION_DIR", t.TempDir())
	t.Setenv("HOTELCHAT_DEBUG", "true")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://api.test", cfg.APIBaseURL)
	assert.Equal(t, "work", cfg.Profile)
	assert.True(t, cfg.Debug)

	t.Setenv("HOTELCHAT_PROFILE", "../etc")
	_, err = LoadClientConfig()
	assert.Error(t, err)
}
