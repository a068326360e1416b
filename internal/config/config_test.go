package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Type)
	require.Equal(t, "arkz-uploads", cfg.Storage.Bucket)
	require.Equal(t, "http://localhost:8088", cfg.Storage.PublicBaseURL)
	require.Equal(t, 10*time.Minute, cfg.Upload.URLExpiry)
	require.Equal(t, time.Duration(0), cfg.Scorer.Timeout)
	require.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	require.Empty(t, cfg.MongoDB.URI)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("STORAGE_TYPE", "MinIO")
	t.Setenv("STORAGE_ENDPOINT", "minio:9000")
	t.Setenv("UPLOAD_URL_EXPIRY", "12m")
	t.Setenv("SCORER_URL", "http://scorer:8080/")
	t.Setenv("SCORER_TIMEOUT", "30s")
	t.Setenv("KEYCLOAK_URL", "http://kc/")
	t.Setenv("KEYCLOAK_REALM", "arkz")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "minio", cfg.Storage.Type)
	require.Equal(t, 12*time.Minute, cfg.Upload.URLExpiry)
	require.Equal(t, "http://scorer:8080", cfg.Scorer.URL)
	require.Equal(t, 30*time.Second, cfg.Scorer.Timeout)
	require.Equal(t, "http://kc/realms/arkz", cfg.Keycloak.Issuer())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory dev", Config{Storage: StorageConfig{Type: "memory"}}, false},
		{"prod without secret", Config{Server: ServerConfig{Environment: "production"}, Storage: StorageConfig{Type: "s3"}}, true},
		{"prod memory store", Config{Server: ServerConfig{Environment: "production"}, JWT: JWTConfig{Secret: "x"}, Storage: StorageConfig{Type: "memory"}}, true},
		{"minio without endpoint", Config{Storage: StorageConfig{Type: "minio"}}, true},
		{"unknown backend", Config{Storage: StorageConfig{Type: "gcs"}}, true},
		{"prod s3", Config{Server: ServerConfig{Environment: "production"}, JWT: JWTConfig{Secret: "x"}, Storage: StorageConfig{Type: "s3"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
