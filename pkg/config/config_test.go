package config

import (
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.ListenAddr != ":8843" {
		t.Fatalf("unexpected default listen addr %q", cfg.ListenAddr)
	}
	if cfg.OracleTimeout != 2*time.Second {
		t.Fatalf("unexpected default oracle timeout %s", cfg.OracleTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PHISHGUARD_LISTEN_ADDR", ":9000")
	t.Setenv("PHISHGUARD_ORACLE_TIMEOUT_MS", "750")
	t.Setenv("PHISHGUARD_ENABLE_ML", "false")

	cfg := NewDefaultConfig()
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("listen addr not overridden: %q", cfg.ListenAddr)
	}
	if cfg.OracleTimeout != 750*time.Millisecond {
		t.Fatalf("oracle timeout not overridden: %s", cfg.OracleTimeout)
	}
	if cfg.EnableML {
		t.Fatalf("EnableML not overridden")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty listen addr should fail validation")
	}

	cfg = NewDefaultConfig()
	cfg.OracleTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero oracle timeout should fail validation")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PG_TEST_STR", "value")
	t.Setenv("PG_TEST_INT", "42")
	t.Setenv("PG_TEST_BOOL", "true")
	t.Setenv("PG_TEST_FLOAT", "0.5")
	t.Setenv("PG_TEST_SLICE", "a, b ,c")

	if GetEnv("PG_TEST_STR", "d") != "value" || GetEnv("PG_TEST_MISSING", "d") != "d" {
		t.Fatalf("GetEnv wrong")
	}
	if GetEnvInt("PG_TEST_INT", 0) != 42 || GetEnvInt("PG_TEST_STR", 7) != 7 {
		t.Fatalf("GetEnvInt wrong")
	}
	if !GetEnvBool("PG_TEST_BOOL", false) || GetEnvBool("PG_TEST_MISSING", true) != true {
		t.Fatalf("GetEnvBool wrong")
	}
	if GetEnvFloat("PG_TEST_FLOAT", 0) != 0.5 {
		t.Fatalf("GetEnvFloat wrong")
	}
	slice := GetEnvSlice("PG_TEST_SLICE", nil)
	if len(slice) != 3 || slice[0] != "a" || slice[1] != "b" || slice[2] != "c" {
		t.Fatalf("GetEnvSlice wrong: %v", slice)
	}
}
