// Package config loads the authoring options from an HCL file at
// ~/.usdauthor/config.hcl. A missing file means defaults; a present
// file overrides only the attributes it names.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Options controls browsing and editing behavior. Field tags are the
// HCL attribute names.
type Options struct {
	// LazyLoading materializes tree children on demand instead of
	// walking the whole hierarchy up front.
	LazyLoading bool `hcl:"lazy_loading,optional"`
	// AutoExpand renders rows down to MaxExpandedDepth expanded.
	AutoExpand       bool `hcl:"auto_expand,optional"`
	MaxExpandedDepth int  `hcl:"max_expanded_depth,optional"`
	// CacheNodeInfo enables the per-path info cache.
	CacheNodeInfo bool `hcl:"cache_node_info,optional"`
	// FilterDebounceMS is the quiet period before a filter keystroke
	// burst is applied.
	FilterDebounceMS int `hcl:"filter_debounce_ms,optional"`
	// SessionDB is the SQLite file persisting expansion and selection
	// between runs. Empty disables session persistence.
	SessionDB string `hcl:"session_db,optional"`
}

// Defaults returns the built-in options.
func Defaults() Options {
	return Options{
		LazyLoading:      true,
		AutoExpand:       false,
		MaxExpandedDepth: 2,
		CacheNodeInfo:    true,
		FilterDebounceMS: 300,
		SessionDB:        "",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".usdauthor", "config.hcl"), nil
}

// FilterDebounce returns the debounce quiet period as a duration.
func (o Options) FilterDebounce() time.Duration {
	return time.Duration(o.FilterDebounceMS) * time.Millisecond
}

func (o Options) validate() error {
	if o.MaxExpandedDepth < 0 {
		return fmt.Errorf("max_expanded_depth %d is negative", o.MaxExpandedDepth)
	}
	if o.FilterDebounceMS < 0 {
		return fmt.Errorf("filter_debounce_ms %d is negative", o.FilterDebounceMS)
	}
	return nil
}

// Load reads the options file at path, or at DefaultPath when path is
// empty. A missing file yields the defaults without error.
func Load(path string) (Options, error) {
	opts := Defaults()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return opts, err
		}
		path = p
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return opts, nil
	}
	if err := hclsimple.DecodeFile(path, nil, &opts); err != nil {
		return Defaults(), fmt.Errorf("load config %s: %w", path, err)
	}
	if err := opts.validate(); err != nil {
		return Defaults(), fmt.Errorf("config %s: %w", path, err)
	}
	return opts, nil
}

// Render returns opts as HCL text in attribute order.
func Render(opts Options) string {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("lazy_loading", cty.BoolVal(opts.LazyLoading))
	body.SetAttributeValue("auto_expand", cty.BoolVal(opts.AutoExpand))
	body.SetAttributeValue("max_expanded_depth", cty.NumberIntVal(int64(opts.MaxExpandedDepth)))
	body.SetAttributeValue("cache_node_info", cty.BoolVal(opts.CacheNodeInfo))
	body.SetAttributeValue("filter_debounce_ms", cty.NumberIntVal(int64(opts.FilterDebounceMS)))
	body.SetAttributeValue("session_db", cty.StringVal(opts.SessionDB))
	return string(f.Bytes())
}

// WriteFile writes opts to path as HCL, creating parent directories.
func WriteFile(path string, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Render(opts)), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
