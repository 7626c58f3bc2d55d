package godb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "buffer_pool_pages: 128\nlog_path: /tmp/classdb.log\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BufferPoolPagesOrDefault() != 128 {
		t.Fatalf("expected configured buffer pool size 128, got %d", cfg.BufferPoolPagesOrDefault())
	}
	if cfg.CostPerPageOrDefault() != defaultCostPerPage {
		t.Fatalf("expected cost_per_page default %v, got %v", defaultCostPerPage, cfg.CostPerPageOrDefault())
	}
}

func TestConfigDefaultsWithoutFile(t *testing.T) {
	cfg := &Config{}
	if cfg.BufferPoolPagesOrDefault() != defaultBufferPoolPages {
		t.Fatalf("expected default buffer pool size %d, got %d", defaultBufferPoolPages, cfg.BufferPoolPagesOrDefault())
	}
	if cfg.CostPerPageOrDefault() != defaultCostPerPage {
		t.Fatalf("expected default cost per page %v, got %v", defaultCostPerPage, cfg.CostPerPageOrDefault())
	}
}

func TestFoldCaseIsCaseInsensitive(t *testing.T) {
	if foldCase("HELLO") != foldCase("hello") {
		t.Fatalf("expected foldCase to normalize case for comparison")
	}
}
