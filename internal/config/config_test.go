package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	env := map[string]string{}
	cfg, err := fromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.SlurmMaxWalltime != "48:00:00" {
		t.Errorf("SlurmMaxWalltime = %q, want %q", cfg.SlurmMaxWalltime, "48:00:00")
	}
	if cfg.NProcsPost < 1 {
		t.Errorf("NProcsPost = %d, want >= 1", cfg.NProcsPost)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	env := map[string]string{
		"CSTAR_HOME":               "/tmp/cstar-home",
		"CSTAR_NPROCS_POST":        "4",
		"CSTAR_FRESH_CODEBASES":    "1",
		"CSTAR_CLOBBER_WORKING_DIR": "0",
		"CSTAR_ORCH_TRX_FREQ":      "monthly",
	}
	cfg, err := fromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("fromEnv: %v", err)
	}
	if cfg.Home != "/tmp/cstar-home" {
		t.Errorf("Home = %q, want %q", cfg.Home, "/tmp/cstar-home")
	}
	if cfg.OutDir != "/tmp/cstar-home/assets" {
		t.Errorf("OutDir = %q, want %q", cfg.OutDir, "/tmp/cstar-home/assets")
	}
	if cfg.NProcsPost != 4 {
		t.Errorf("NProcsPost = %d, want 4", cfg.NProcsPost)
	}
	if !cfg.FreshCodebases {
		t.Errorf("FreshCodebases = false, want true")
	}
	if cfg.ClobberWorkingDir {
		t.Errorf("ClobberWorkingDir = true, want false")
	}
	if cfg.OrchTrxFreq != "monthly" {
		t.Errorf("OrchTrxFreq = %q, want %q", cfg.OrchTrxFreq, "monthly")
	}
}

func TestFromEnv_InvalidNProcsPost(t *testing.T) {
	env := map[string]string{"CSTAR_NPROCS_POST": "not-a-number"}
	if _, err := fromEnv(func(k string) string { return env[k] }); err == nil {
		t.Error("expected error for invalid CSTAR_NPROCS_POST")
	}
}
