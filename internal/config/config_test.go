package config

import (
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	// 默认调用约定不依赖宿主平台
	if cfg.Frame.CallingConvention != "sysv" {
		t.Errorf("calling_convention = %q, want sysv", cfg.Frame.CallingConvention)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[frame]
max_size = 4096

[allocator]
strategy = "simple"
verify = true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Frame.MaxSize != 4096 {
		t.Errorf("max_size = %d, want 4096", cfg.Frame.MaxSize)
	}
	if cfg.Frame.Alignment != 16 {
		t.Errorf("alignment should keep default 16, got %d", cfg.Frame.Alignment)
	}
	if cfg.Allocator.Strategy != StrategySimple || !cfg.Allocator.Verify {
		t.Errorf("allocator = %+v", cfg.Allocator)
	}
}

// TestValidateCollectsAllErrors 测试校验会合并所有错误
func TestValidateCollectsAllErrors(t *testing.T) {
	_, err := Parse([]byte(`
[frame]
alignment = 12
word_size = 2

[allocator]
strategy = "graph-coloring"

[log]
level = "verbose"
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if n := len(multierr.Errors(err)); n != 4 {
		t.Errorf("got %d errors, want 4: %v", n, err)
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("[frame\nmax_size = "))
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	cfg := Default()
	cfg.Frame.MaxSize = 2048
	cfg.Allocator.Workers = 3
	cfg.Frame.CallingConvention = "win64"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}

func TestFrameConfig(t *testing.T) {
	cfg := Default()
	cfg.Frame.WordSize = 4
	fc := cfg.FrameConfig()
	if fc.WordSize != 4 || fc.Alignment != cfg.Frame.Alignment || fc.MaxSize != cfg.Frame.MaxSize {
		t.Errorf("FrameConfig = %+v", fc)
	}
}
