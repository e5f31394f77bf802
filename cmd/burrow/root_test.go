package main

import (
	"os"
	"path/filepath"
	"testing"
)

// isolateEnv points every config input at empty or throwaway locations
// so tests never see the developer's real ~/.burrow.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BURROW_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	for _, key := range []string{
		"BURROW_MODEL", "BURROW_BASE_DIR", "BURROW_VERBOSE", "BURROW_LEAN",
		"BURROW_NO_COLOR", "NO_COLOR", "BURROW_AUTO_YES", "BURROW_NO_CACHE",
		"BURROW_COMPACT_MODE", "XAI_API_KEY", "XAI_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

// resetFlags restores the global flag state a test mutates.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile = ""
		flagModel = ""
		flagVerbose = false
		flagNoColor = false
		flagLean = false
		flagYes = false
		flagNoCache = false
		flagCompact = ""
		flagEscapeFS = false
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateEnv(t)
	resetFlags(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model != "grok41_fast" {
		t.Errorf("Model = %q, want %q", cfg.Model, "grok41_fast")
	}
	if cfg.Cache.Disabled {
		t.Error("cache disabled by default")
	}
	if cfg.Compact.Mode != "smart" {
		t.Errorf("Compact.Mode = %q, want %q", cfg.Compact.Mode, "smart")
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	isolateEnv(t)
	resetFlags(t)
	flagModel = "grok4_reasoning"
	flagLean = true
	flagYes = true
	flagNoCache = true
	flagCompact = "never"

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model != "grok4_reasoning" {
		t.Errorf("Model = %q, want %q", cfg.Model, "grok4_reasoning")
	}
	if !cfg.Lean {
		t.Error("Lean not applied from flag")
	}
	if !cfg.AutoYes {
		t.Error("AutoYes not applied from flag")
	}
	if !cfg.Cache.Disabled {
		t.Error("Cache.Disabled not applied from flag")
	}
	if cfg.Compact.Mode != "never" {
		t.Errorf("Compact.Mode = %q, want %q", cfg.Compact.Mode, "never")
	}
}

func TestLoadConfigFlagBeatsHomeConfig(t *testing.T) {
	isolateEnv(t)
	resetFlags(t)

	home := os.Getenv("HOME")
	dir := filepath.Join(home, ".burrow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "model: grok_code\nlean: true\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	flagModel = "grok4"

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Model != "grok4" {
		t.Errorf("Model = %q, want flag value %q", cfg.Model, "grok4")
	}
	if !cfg.Lean {
		t.Error("Lean from home config lost")
	}
}

func TestSyncConfigFlagToEnv(t *testing.T) {
	isolateEnv(t)
	resetFlags(t)

	syncConfigFlagToEnv()
	if got := os.Getenv("BURROW_CONFIG"); filepath.Base(got) != "missing.yaml" {
		t.Errorf("empty flag overwrote BURROW_CONFIG: %q", got)
	}

	cfgFile = filepath.Join(t.TempDir(), "custom.yaml")
	syncConfigFlagToEnv()
	if got := os.Getenv("BURROW_CONFIG"); got != cfgFile {
		t.Errorf("BURROW_CONFIG = %q, want %q", got, cfgFile)
	}
}
