package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		RegistryDriver:  DriverPostgres,
		DatabaseURL:     "postgres://localhost/push",
		VAPIDPublicKey:  "pub",
		VAPIDPrivateKey: "priv",
		DeliveryTimeout: 12 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "mongo ok", mutate: func(c *Config) { c.RegistryDriver = DriverMongo; c.MongoURI = "mongodb://localhost" }},
		{name: "unknown driver", mutate: func(c *Config) { c.RegistryDriver = "redis" }, wantErr: "unknown REGISTRY_DRIVER"},
		{name: "missing dsn", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "missing mongo uri", mutate: func(c *Config) { c.RegistryDriver = DriverMongo }, wantErr: "MONGO_URI"},
		{name: "missing vapid", mutate: func(c *Config) { c.VAPIDPrivateKey = "" }, wantErr: "VAPID"},
		{name: "zero timeout", mutate: func(c *Config) { c.DeliveryTimeout = 0 }, wantErr: "DELIVERY_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PUSH_TEST_DURATION", "15s")
	t.Setenv("PUSH_TEST_BAD_DURATION", "soon")
	t.Setenv("PUSH_TEST_INT", " 42 ")

	if got := getEnvAsDuration("PUSH_TEST_DURATION", time.Second); got != 15*time.Second {
		t.Errorf("getEnvAsDuration = %s, want 15s", got)
	}
	if got := getEnvAsDuration("PUSH_TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvAsDuration(bad) = %s, want default 1s", got)
	}
	if got := getEnvAsInt("PUSH_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvAsInt = %d, want 42", got)
	}
	if got := getEnv("PUSH_TEST_UNSET_KEY", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want fallback", got)
	}

	t.Setenv("PUSH_TEST_LIST", " https://a.example, ,https://b.example ")
	if got := getEnvAsList("PUSH_TEST_LIST"); len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("getEnvAsList = %q", got)
	}
	if got := getEnvAsList("PUSH_TEST_UNSET_LIST"); got != nil {
		t.Errorf("getEnvAsList(unset) = %q, want nil", got)
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	t.Setenv("REGISTRY_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RegistryDriver != DriverSQLite {
		t.Errorf("RegistryDriver = %q, want %q", cfg.RegistryDriver, DriverSQLite)
	}
	if cfg.DeliveryTimeout != 12*time.Second {
		t.Errorf("DeliveryTimeout = %s, want 12s", cfg.DeliveryTimeout)
	}
	if cfg.MaxPayloadBytes != 3072 {
		t.Errorf("MaxPayloadBytes = %d, want 3072", cfg.MaxPayloadBytes)
	}
}
