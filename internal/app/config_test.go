package app

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.JobTTLSeconds != 3600 {
		t.Fatalf("JobTTLSeconds = %d", cfg.JobTTLSeconds)
	}
	if cfg.FileTTLMinutes != 10 {
		t.Fatalf("FileTTLMinutes = %d", cfg.FileTTLMinutes)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("WorkerCount = %d", cfg.WorkerCount)
	}
	if !cfg.RateLimitEnabled {
		t.Fatal("rate limiting disabled by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JOB_TTL_SECONDS", "120")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")
	t.Setenv("RATE_LIMIT_ENDPOINT_HOURLY", "/api/v1/videos/resolutions:30,broken,/x:-1")

	cfg := LoadConfig()
	if cfg.JobTTLSeconds != 120 {
		t.Fatalf("JobTTLSeconds = %d", cfg.JobTTLSeconds)
	}
	if cfg.RateLimitEnabled {
		t.Fatal("RateLimitEnabled should be false")
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[1] != "10.0.0.2" {
		t.Fatalf("whitelist = %v", cfg.RateLimitWhitelist)
	}
	if len(cfg.RateLimitEndpointHourly) != 1 || cfg.RateLimitEndpointHourly["/api/v1/videos/resolutions"] != 30 {
		t.Fatalf("endpoint limits = %v", cfg.RateLimitEndpointHourly)
	}
}

func TestGetEnvInt64RejectsGarbage(t *testing.T) {
	t.Setenv("JOB_TTL_SECONDS", "not-a-number")
	if cfg := LoadConfig(); cfg.JobTTLSeconds != 3600 {
		t.Fatalf("JobTTLSeconds = %d", cfg.JobTTLSeconds)
	}
	t.Setenv("JOB_TTL_SECONDS", "-5")
	if cfg := LoadConfig(); cfg.JobTTLSeconds != 3600 {
		t.Fatalf("negative JobTTLSeconds = %d", cfg.JobTTLSeconds)
	}
}
