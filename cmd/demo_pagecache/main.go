package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kvstorelabs/pagecachectl/config"
	"github.com/kvstorelabs/pagecachectl/logger"
	"github.com/kvstorelabs/pagecachectl/pagecache"
	"github.com/kvstorelabs/pagecachectl/report"
	"github.com/kvstorelabs/pagecachectl/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults built in if empty)")
	legacyINI := flag.Bool("legacy-ini", false, "treat -config as a legacy INI file instead of TOML")
	backend := flag.String("store", "memory", "backing store: memory|file")
	dataFile := flag.String("data", "", "backing file path when -store=file (defaults to a temp file)")
	flag.Parse()

	fmt.Println("=== pagecachectl page cache controller demo ===")
	fmt.Println()

	cfg, err := loadConfig(*configPath, *legacyINI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}

	settings, err := cfg.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("page count: %d\n", settings.PageCount)
	fmt.Printf("page size: %d bytes\n", settings.PageSize)
	fmt.Printf("replace algorithm: %v\n", settings.ReplaceAlgorithm)
	fmt.Printf("locator type: %v\n", settings.LocatorType)
	fmt.Println()

	store, cleanup, err := openStore(*backend, *dataFile, uint32(settings.PageSize), settings.PageCount+2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ctl := pagecache.NewPageCacheController(store)
	ctl.SetDebugTracePoint(logger.TracePointCallback)
	ctl.SetDebugCallbackLog(logger.LogCallback)
	defer ctl.Close()

	ctl.SetStartPageOffset(pagecache.DataAddress(cfg.StartPageOffset))
	ctl.SetWritePolicy(settings.WritePolicy)
	ctl.SetWriteMissPolicy(settings.WriteMissPolicy)
	ctl.SetReplaceAlgorithm(settings.ReplaceAlgorithm)
	ctl.SetCleanBeforeLoad(settings.IsCleanBeforeLoad)
	ctl.Enable(settings.IsEnabled)
	if err := ctl.SetLocatorType(settings.LocatorType); err != nil {
		fmt.Fprintf(os.Stderr, "locator type error: %v\n", err)
		os.Exit(1)
	}
	if err := ctl.SetupPages(pagecache.PageCount(settings.PageCount), settings.PageSize); err != nil {
		fmt.Fprintf(os.Stderr, "setup pages error: %v\n", err)
		os.Exit(1)
	}
	if cfg.AlgorithmParamKey != "" {
		if err := ctl.SetAlgorithmParameter(cfg.AlgorithmParamKey, cfg.AlgorithmParamVal); err != nil {
			fmt.Fprintf(os.Stderr, "algorithm parameter error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("正在驱动页缓存控制器...")
	runWorkload(ctl, settings, cfg.StartPageOffset)

	fmt.Println()
	fmt.Println("=== 统计信息 ===")
	fmt.Println(report.Summary(ctl.GetStatistic()))
}

func loadConfig(path string, legacyINI bool) (*config.FileConfig, error) {
	if path == "" {
		return &config.FileConfig{
			PageCount:        8,
			PageSize:         4096,
			WritePolicy:      "write_back",
			WriteMissPolicy:  "write_allocate",
			ReplaceAlgorithm: "lru",
			LocatorType:      "direct",
			Enabled:          true,
			LogLevel:         "info",
		}, nil
	}
	if legacyINI {
		return config.LoadLegacyINI(path)
	}
	return config.LoadTOML(path)
}

func openStore(backend, dataFile string, pageSize uint32, pageCount uint64) (pagecache.BackingStore, func(), error) {
	switch backend {
	case "memory":
		return storage.NewMemoryStore(uint64(pageSize) * pageCount), func() {}, nil
	case "file":
		path := dataFile
		if path == "" {
			f, err := os.CreateTemp("", "pagecachectl-demo-*.bin")
			if err != nil {
				return nil, nil, fmt.Errorf("create temp data file: %w", err)
			}
			path = f.Name()
			f.Close()
		}
		codec, err := storage.NewCodec("snappy")
		if err != nil {
			return nil, nil, err
		}
		fs, err := storage.NewFileStore(path, pageSize, codec)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {
			fs.Close()
			if dataFile == "" {
				os.Remove(path)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", backend)
	}
}

// runWorkload exercises a small read/write/miss/flush sequence so the demo
// shows a non-trivial hit ratio and at least one eviction.
func runWorkload(ctl *pagecache.PageCacheController, settings pagecache.CacheSettings, startPageOffset uint64) {
	ctx := context.Background()
	pageSize := int(settings.PageSize)
	if pageSize == 0 || settings.PageCount == 0 {
		fmt.Println("skipping workload: no pages configured")
		return
	}

	write := func(page uint64, payload string) {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		addr := pagecache.DataAddress(page)*pagecache.DataAddress(pageSize) + pagecache.DataAddress(startPageOffset)
		if err := ctl.Write(ctx, addr, buf, nil); err != nil {
			fmt.Printf("write page %d failed: %v\n", page, err)
		}
	}
	read := func(page uint64, n int) {
		buf := make([]byte, n)
		addr := pagecache.DataAddress(page)*pagecache.DataAddress(pageSize) + pagecache.DataAddress(startPageOffset)
		if err := ctl.Read(ctx, addr, buf, nil); err != nil {
			fmt.Printf("read page %d failed: %v\n", page, err)
			return
		}
		fmt.Printf("page %d -> %q\n", page, buf)
	}

	for i := uint64(0); i < settings.PageCount; i++ {
		write(i, fmt.Sprintf("payload-%d", i))
	}
	for i := uint64(0); i < settings.PageCount; i++ {
		read(i, 12)
	}
	// Force at least one eviction by touching a page beyond the resident set.
	write(settings.PageCount, "overflow-page")
	read(settings.PageCount, 13)

	if err := ctl.Flush(); err != nil {
		fmt.Printf("flush error: %v\n", err)
	}
}
