package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"STORAGE_BACKEND", "INFERENCE_DEFAULT_CURRENCY", "PIPELINE_BATCH_CONCURRENCY",
		"API_RATE_LIMIT_RPS", "API_MAX_IN_FLIGHT", "API_H2C_ENABLED", "RESILIENCE_BREAKER_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StorageBackend != "local" {
		t.Fatalf("expected local storage backend, got %q", cfg.StorageBackend)
	}
	if cfg.InferenceDefaultCurrency != "SAR" {
		t.Fatalf("expected SAR default currency, got %q", cfg.InferenceDefaultCurrency)
	}
	if cfg.PipelineBatchConcurrency != 4 {
		t.Fatalf("expected batch concurrency 4, got %d", cfg.PipelineBatchConcurrency)
	}
	if cfg.APIRateLimitRPS != 20 || cfg.APIMaxInFlight != 32 {
		t.Fatalf("unexpected traffic defaults rps=%v in_flight=%d", cfg.APIRateLimitRPS, cfg.APIMaxInFlight)
	}
	if cfg.APIH2CEnabled || !cfg.ResilienceBreakerEnabled {
		t.Fatalf("unexpected bool defaults h2c=%v breaker=%v", cfg.APIH2CEnabled, cfg.ResilienceBreakerEnabled)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("INFERENCE_DEFAULT_CURRENCY", "aed")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_H2C_ENABLED", "true")
	t.Setenv("S3_USE_SSL", "1")
	t.Setenv("WORKER_PROCESS_TIMEOUT_SECONDS", "45")

	cfg := Load()
	if cfg.StorageBackend != "s3" || cfg.InferenceDefaultCurrency != "AED" {
		t.Fatalf("expected normalized overrides, got %q %q", cfg.StorageBackend, cfg.InferenceDefaultCurrency)
	}
	if cfg.APIRateLimitRPS != 2.5 || !cfg.APIH2CEnabled || !cfg.S3UseSSL {
		t.Fatalf("unexpected parsed overrides %+v", cfg)
	}
	if cfg.WorkerProcessTimeoutSeconds != 45 {
		t.Fatalf("expected timeout 45, got %d", cfg.WorkerProcessTimeoutSeconds)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("API_MAX_IN_FLIGHT", "many")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "maybe")
	t.Setenv("RESILIENCE_RETRY_MULTIPLIER", "x2")

	cfg := Load()
	if cfg.APIMaxInFlight != 32 || !cfg.ResilienceBreakerEnabled || cfg.ResilienceRetryMultiplier != 2 {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
}
