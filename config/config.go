// Package config loads CacheSettings-shaped configuration. TOML
// (github.com/pelletier/go-toml) is the primary format; a legacy INI
// loader (gopkg.in/ini.v1) stays available for deployments still on an
// older config file, the way the teacher keeps an ini.File-backed loader
// alive next to its newer configuration paths.
package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
	"gopkg.in/ini.v1"

	"github.com/kvstorelabs/pagecachectl/pagecache"
)

// FileConfig mirrors pagecache.CacheSettings plus the knobs that live
// outside it (start offset, hash memory limit, algorithm parameter, log
// level).
type FileConfig struct {
	PageCount         uint64 `toml:"page_count"`
	PageSize          uint32 `toml:"page_size"`
	StartPageOffset   uint64 `toml:"start_page_offset"`
	WritePolicy       string `toml:"write_policy"`       // "write_back" | "write_through"
	WriteMissPolicy   string `toml:"write_miss_policy"`  // "write_allocate" | "write_around"
	ReplaceAlgorithm  string `toml:"replace_algorithm"`  // fifo|lru|lfu|mru|clock|nru|random
	LocatorType       string `toml:"locator_type"`       // direct|tree
	Enabled           bool   `toml:"enabled"`
	CleanBeforeLoad   bool   `toml:"clean_before_load"`
	HashMemoryLimit   uint64 `toml:"hash_memory_limit"`
	AlgorithmParamKey string `toml:"algorithm_parameter_name"`
	AlgorithmParamVal string `toml:"algorithm_parameter_value"`
	LogLevel          string `toml:"log_level"`
}

// LoadTOML reads a FileConfig from a TOML file.
func LoadTOML(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := defaultFileConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadLegacyINI reads the older [cache]-sectioned INI format. Kept for
// deployments migrating off it onto TOML.
func LoadLegacyINI(path string) (*FileConfig, error) {
	raw, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load ini %s: %w", path, err)
	}

	cfg := defaultFileConfig()
	section := raw.Section("cache")

	if key, err := section.GetKey("page_count"); err == nil {
		cfg.PageCount = key.MustUint64(cfg.PageCount)
	}
	if key, err := section.GetKey("page_size"); err == nil {
		cfg.PageSize = uint32(key.MustUint64(uint64(cfg.PageSize)))
	}
	if key, err := section.GetKey("start_page_offset"); err == nil {
		cfg.StartPageOffset = key.MustUint64(cfg.StartPageOffset)
	}
	if key, err := section.GetKey("write_policy"); err == nil {
		cfg.WritePolicy = key.MustString(cfg.WritePolicy)
	}
	if key, err := section.GetKey("write_miss_policy"); err == nil {
		cfg.WriteMissPolicy = key.MustString(cfg.WriteMissPolicy)
	}
	if key, err := section.GetKey("replace_algorithm"); err == nil {
		cfg.ReplaceAlgorithm = key.MustString(cfg.ReplaceAlgorithm)
	}
	if key, err := section.GetKey("locator_type"); err == nil {
		cfg.LocatorType = key.MustString(cfg.LocatorType)
	}
	if key, err := section.GetKey("enabled"); err == nil {
		cfg.Enabled = key.MustBool(cfg.Enabled)
	}
	if key, err := section.GetKey("clean_before_load"); err == nil {
		cfg.CleanBeforeLoad = key.MustBool(cfg.CleanBeforeLoad)
	}
	if key, err := section.GetKey("hash_memory_limit"); err == nil {
		cfg.HashMemoryLimit = key.MustUint64(cfg.HashMemoryLimit)
	}
	if key, err := section.GetKey("log_level"); err == nil {
		cfg.LogLevel = key.MustString(cfg.LogLevel)
	}
	return cfg, nil
}

func defaultFileConfig() *FileConfig {
	return &FileConfig{
		WritePolicy:      "write_back",
		WriteMissPolicy:  "write_allocate",
		ReplaceAlgorithm: "lru",
		LocatorType:      "direct",
		Enabled:          true,
		LogLevel:         "info",
	}
}

// Settings translates the file config into the controller-facing value
// types, validating enum strings.
func (c *FileConfig) Settings() (pagecache.CacheSettings, error) {
	wp, err := parseWritePolicy(c.WritePolicy)
	if err != nil {
		return pagecache.CacheSettings{}, err
	}
	wmp, err := parseWriteMissPolicy(c.WriteMissPolicy)
	if err != nil {
		return pagecache.CacheSettings{}, err
	}
	alg, err := parseAlgorithm(c.ReplaceAlgorithm)
	if err != nil {
		return pagecache.CacheSettings{}, err
	}
	lt, err := parseLocatorType(c.LocatorType)
	if err != nil {
		return pagecache.CacheSettings{}, err
	}

	return pagecache.CacheSettings{
		PageCount:         c.PageCount,
		PageSize:          pagecache.PageSize(c.PageSize),
		WritePolicy:       wp,
		WriteMissPolicy:   wmp,
		ReplaceAlgorithm:  alg,
		LocatorType:       lt,
		IsEnabled:         c.Enabled,
		IsCleanBeforeLoad: c.CleanBeforeLoad,
	}, nil
}

func parseWritePolicy(s string) (pagecache.WritePolicy, error) {
	switch s {
	case "", "write_back":
		return pagecache.WriteBack, nil
	case "write_through":
		return pagecache.WriteThrough, nil
	default:
		return 0, fmt.Errorf("config: unknown write_policy %q", s)
	}
}

func parseWriteMissPolicy(s string) (pagecache.WriteMissPolicy, error) {
	switch s {
	case "", "write_allocate":
		return pagecache.WriteAllocate, nil
	case "write_around":
		return pagecache.WriteAround, nil
	default:
		return 0, fmt.Errorf("config: unknown write_miss_policy %q", s)
	}
}

func parseAlgorithm(s string) (pagecache.ReplaceAlgorithm, error) {
	switch s {
	case "", "lru":
		return pagecache.AlgLRU, nil
	case "fifo":
		return pagecache.AlgFIFO, nil
	case "lfu":
		return pagecache.AlgLFU, nil
	case "mru":
		return pagecache.AlgMRU, nil
	case "clock":
		return pagecache.AlgClock, nil
	case "nru":
		return pagecache.AlgNRU, nil
	case "random":
		return pagecache.AlgRandom, nil
	default:
		return 0, fmt.Errorf("config: unknown replace_algorithm %q", s)
	}
}

func parseLocatorType(s string) (pagecache.LocatorType, error) {
	switch s {
	case "", "direct":
		return pagecache.LocatorDirect, nil
	case "tree":
		return pagecache.LocatorTree, nil
	default:
		return 0, fmt.Errorf("config: unknown locator_type %q", s)
	}
}
