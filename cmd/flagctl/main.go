package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/database"
	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/model"
)

var (
	list     = flag.Bool("list", false, "List stored advancement flags")
	reset    = flag.Bool("reset", false, "Clear the advancement flag of one report")
	cycleID  = flag.Int64("cycle", 0, "Cycle id for -reset")
	reportID = flag.Int64("report", 0, "Report id for -reset")
	dryRun   = flag.Bool("dry-run", true, "Dry run mode, don't actually clear the flag")
)

var errNoAction = errors.New("nothing to do: pass -list or -reset")

type options struct {
	List   bool
	Reset  bool
	Key    model.ReportKey
	DryRun bool
}

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	opts := options{
		List:   *list,
		Reset:  *reset,
		Key:    model.ReportKey{CycleID: *cycleID, ReportID: *reportID},
		DryRun: *dryRun,
	}

	if err := execute(cfg, opts, openStore, os.Stdout); err != nil {
		if errors.Is(err, errNoAction) {
			flag.Usage()
		}
		log.Fatal().Err(err).Str("driver", cfg.FlagStore.Driver).Msg("flagctl failed")
	}
}

type storeOpener func(cfg *config.Config) (flagstore.Store, func(), error)

// execute 打开存储并执行命令，返回前关闭连接
func execute(cfg *config.Config, opts options, open storeOpener, w io.Writer) error {
	store, closeFn, err := open(cfg)
	if err != nil {
		return fmt.Errorf("open flag store: %w", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return run(ctx, store, opts, w)
}

// openStore 只连接所选 driver 需要的存储
func openStore(cfg *config.Config) (flagstore.Store, func(), error) {
	var (
		rdb *redis.Client
		db  *gorm.DB
		err error
	)
	closeFn := func() {}

	switch cfg.FlagStore.Driver {
	case "redis":
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { rdb.Close() }
	case "database":
		db, err = database.Open(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
	}

	store, err := flagstore.New(cfg.FlagStore, rdb, db)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func run(ctx context.Context, store flagstore.Store, opts options, w io.Writer) error {
	switch {
	case opts.List:
		return listFlags(ctx, store, w)
	case opts.Reset:
		return resetFlag(ctx, store, opts.Key, opts.DryRun, w)
	}
	return errNoAction
}

func listFlags(ctx context.Context, store flagstore.Store, w io.Writer) error {
	lister, ok := store.(flagstore.Lister)
	if !ok {
		return fmt.Errorf("flag store %T cannot list flags", store)
	}
	entries, err := lister.List(ctx)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.CycleID != entries[j].Key.CycleID {
			return entries[i].Key.CycleID < entries[j].Key.CycleID
		}
		return entries[i].Key.ReportID < entries[j].Key.ReportID
	})

	fmt.Fprintf(w, "%-10s %-10s %s\n", "CYCLE", "REPORT", "ADVANCED")
	for _, e := range entries {
		fmt.Fprintf(w, "%-10d %-10d %t\n", e.Key.CycleID, e.Key.ReportID, e.Advanced)
	}
	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintf(w, "%d flag(s)\n", len(entries))
	return nil
}

func resetFlag(ctx context.Context, store flagstore.Store, key model.ReportKey, dryRun bool, w io.Writer) error {
	if !key.Valid() {
		return fmt.Errorf("-reset requires positive -cycle and -report, got %s", key)
	}

	advanced, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !advanced {
		fmt.Fprintf(w, "%s: not advanced, nothing to clear\n", key)
		return nil
	}

	if dryRun {
		fmt.Fprintf(w, "%s: advanced (dry run, run with -dry-run=false to clear)\n", key)
		return nil
	}
	if err := store.Delete(ctx, key); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: cleared\n", key)
	return nil
}
