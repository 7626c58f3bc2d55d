package godb

import (
	"os"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Config is classdb's on-disk configuration, loaded from YAML rather than
// flags: buffer pool sizing, page geometry overrides, the optimizer's
// per-page cost constant, and where the write-ahead log lives.
type Config struct {
	BufferPoolPages int     `yaml:"buffer_pool_pages"`
	PageSize        int     `yaml:"page_size"`
	StringLength    int     `yaml:"string_length"`
	CostPerPage     float64 `yaml:"cost_per_page"`
	LogPath         string  `yaml:"log_path"`
}

const defaultBufferPoolPages = 64
const defaultCostPerPage = 1000.0

// LoadConfig reads and parses a YAML config file at path. Missing fields
// fall back to classdb's defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapGoDBError(IOError, "reading config file", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, wrapGoDBError(MalformedDataError, "parsing config yaml", err)
	}
	if cfg.CostPerPage == 0 {
		cfg.CostPerPage = defaultCostPerPage
	}
	return cfg, nil
}

// BufferPoolPagesOrDefault returns the configured buffer pool size, or
// defaultBufferPoolPages if unset.
func (c *Config) BufferPoolPagesOrDefault() int {
	if c.BufferPoolPages <= 0 {
		return defaultBufferPoolPages
	}
	return c.BufferPoolPages
}

// CostPerPageOrDefault returns the configured per-page I/O cost constant, or
// defaultCostPerPage if unset.
func (c *Config) CostPerPageOrDefault() float64 {
	if c.CostPerPage == 0 {
		return defaultCostPerPage
	}
	return c.CostPerPage
}

// caseFolder normalizes string comparisons for LIKE: case-insensitive,
// locale-aware folding rather than a byte-wise ToLower.
var caseFolder = cases.Fold()

// foldCase applies case folding so LIKE comparisons ignore case the way a
// typical SQL engine does, without assuming ASCII-only input.
func foldCase(s string) string {
	return caseFolder.String(s)
}
