package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rookery/internal/cmdlog"
	"rookery/internal/collect"
	"rookery/internal/config"
	"rookery/internal/jobs"
	"rookery/internal/logging"
	"rookery/internal/merge"
	"rookery/internal/metrics"
	"rookery/internal/model"
	"rookery/internal/store"
	"rookery/internal/theme"
	"rookery/internal/util"
)

func main() {
	_ = godotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "track":
		cmdTrack()
	case "disable":
		cmdDisable()
	case "tasks":
		cmdTasks()
	case "batch":
		cmdBatch()
	case "single":
		cmdSingle()
	case "daemon":
		cmdDaemon()
	case "stats":
		cmdStats()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: rookery <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init      Create a config file at ./rookery.yaml")
	fmt.Println("  track     Register (or reactivate) collection tasks for a handle")
	fmt.Println("  disable   Disable a task")
	fmt.Println("  tasks     List tasks and their schedule state (-stale for stuck runs)")
	fmt.Println("  batch     Run one scheduling cycle")
	fmt.Println("  single    Collect and merge one handle/data-type immediately")
	fmt.Println("  daemon    Run batches on a cron cadence")
	fmt.Println("  stats     Show archive counts per tracked entity")
}

func mustLoad(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.Debug); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	metrics.StartServer(cfg.Metrics.Addr)
	return cfg
}

func mustOpen(cfg config.Config) *store.DB {
	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	db.SetChunkSize(cfg.Storage.ChunkSize)
	return db
}

func buildDeps(cfg config.Config, db *store.DB) jobs.Deps {
	session := collect.NewSession(&collect.FileCollector{Dir: cfg.Collector.SourceDir}, cfg.Collector.RPS, cfg.Collector.Burst)
	return jobs.Deps{
		DB:      db,
		Session: session,
		Merger:  merge.New(db),
		Window:  cfg.Window(),
		Ceiling: cfg.TaskCeiling(),
	}
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./rookery.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdTrack() {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	handle := fs.String("handle", "", "entity handle")
	types := fs.String("types", "posts", "comma-separated data types")
	maxCount := fs.Int("max", 0, "per-run record cap (0 = config default)")
	_ = fs.Parse(os.Args[2:])
	if *handle == "" {
		fmt.Println("error: -handle is required")
		os.Exit(1)
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	err := cmdlog.Run("track", func() error {
		ctx := context.Background()
		now := time.Now().UTC()
		if _, err := db.EnsureUser(ctx, *handle, now); err != nil {
			return err
		}
		for _, t := range strings.Split(*types, ",") {
			t = strings.TrimSpace(t)
			if !model.ValidDataType(t) {
				return fmt.Errorf("unknown data type %q", t)
			}
			task, err := db.UpsertTask(ctx, *handle, model.DataType(t), *maxCount, now)
			if err != nil {
				return err
			}
			fmt.Printf("tracking @%s/%s tier=%s\n", task.Handle, task.DataType, task.Tier)
		}
		return nil
	})
	exitOn(err)
}

func cmdDisable() {
	fs := flag.NewFlagSet("disable", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	handle := fs.String("handle", "", "entity handle")
	dataType := fs.String("type", "", "data type")
	_ = fs.Parse(os.Args[2:])
	if *handle == "" || !model.ValidDataType(*dataType) {
		fmt.Println("error: -handle and a valid -type are required")
		os.Exit(1)
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	err := cmdlog.Run("disable", func() error {
		return db.SetTaskEnabled(context.Background(), *handle, model.DataType(*dataType), false, time.Now().UTC())
	})
	exitOn(err)
}

func cmdTasks() {
	fs := flag.NewFlagSet("tasks", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	stale := fs.Bool("stale", false, "list only stuck running tasks")
	_ = fs.Parse(os.Args[2:])
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	err := cmdlog.Run("tasks", func() error {
		ctx := context.Background()
		var (
			tasks []model.Task
			err   error
		)
		if *stale {
			maxAge := time.Duration(cfg.Schedule.StaleAfterHours) * time.Hour
			tasks, err = db.StaleRunningTasks(ctx, maxAge, time.Now().UTC())
		} else {
			tasks, err = db.ListTasks(ctx)
		}
		if err != nil {
			return err
		}
		if *stale && len(tasks) > 0 {
			fmt.Println("warning: stuck running tasks need operator review; they are not reset automatically")
		}
		for _, t := range tasks {
			next := "-"
			if t.NextRunAt != nil {
				next = t.NextRunAt.Format(time.RFC3339)
			}
			state := string(t.Status)
			if !t.Enabled {
				state += " (disabled)"
			}
			fmt.Printf("@%-20s %-10s %-18s tier=%-12s rate=%.2f/d next=%s %s\n",
				t.Handle, t.DataType, state, t.Tier, t.RatePerDay, next, util.Truncate(t.Error, 60))
		}
		return nil
	})
	exitOn(err)
}

func cmdBatch() {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	tier := fs.String("tier", string(model.TierAll), "frequency tier filter")
	sample := fs.Int("sample", 0, "entities per cycle (0 = config default)")
	only := fs.String("only", "", "comma-separated handles to restrict to")
	skipCompleted := fs.Bool("skip-completed", false, "skip tasks in completed status")
	contOnErr := fs.Bool("continue-on-error", true, "keep going after a failed task")
	_ = fs.Parse(os.Args[2:])
	if !model.ValidTier(*tier) {
		fmt.Println("error: unknown tier", *tier)
		os.Exit(1)
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()

	opts := jobs.BatchOptions{
		Tier:            model.Tier(*tier),
		SampleSize:      cfg.Schedule.SampleSize,
		SkipCompleted:   *skipCompleted,
		ContinueOnError: *contOnErr,
		DefaultMaxCount: cfg.Collector.DefaultMaxCount,
	}
	if *sample > 0 {
		opts.SampleSize = *sample
	}
	if *only != "" {
		opts.OnlyEntities = strings.Split(*only, ",")
	}

	var report model.BatchReport
	err := cmdlog.Run("batch", func() error {
		var err error
		report, err = jobs.RunBatch(signalContext(), buildDeps(cfg, db), opts)
		return err
	})
	printReport(report)
	exitOn(err)
	if report.ErrorCount > 0 && !opts.ContinueOnError {
		os.Exit(1)
	}
}

func cmdSingle() {
	fs := flag.NewFlagSet("single", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	handle := fs.String("handle", "", "entity handle")
	dataType := fs.String("type", "posts", "data type")
	maxCount := fs.Int("max", 0, "record cap (0 = config default)")
	_ = fs.Parse(os.Args[2:])
	if *handle == "" || !model.ValidDataType(*dataType) {
		fmt.Println("error: -handle and a valid -type are required")
		os.Exit(1)
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	err := cmdlog.Run("single", func() error {
		max := *maxCount
		if max <= 0 {
			max = cfg.Collector.DefaultMaxCount
		}
		res, err := jobs.RunSingle(signalContext(), buildDeps(cfg, db), *handle, model.DataType(*dataType), max)
		if err != nil {
			return err
		}
		fmt.Printf("total=%d new=%d updated=%d discarded=%d\n", res.Total, res.New, res.Updated, res.Discarded)
		return nil
	})
	exitOn(err)
}

func cmdDaemon() {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	defer logging.Sync()

	opts := jobs.BatchOptions{
		Tier:            model.TierAll,
		SampleSize:      cfg.Schedule.SampleSize,
		ContinueOnError: cfg.Batch.ContinueOnError,
		DefaultMaxCount: cfg.Collector.DefaultMaxCount,
	}
	theme.PrintBanner()
	err := jobs.RunLoop(signalContext(), buildDeps(cfg, db), opts, cfg.Schedule.DaemonCron)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func cmdStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "./rookery.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	err := cmdlog.Run("stats", func() error {
		ctx := context.Background()
		users, err := db.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			posts, err := db.CountPostsByUser(ctx, u.ID)
			if err != nil {
				return err
			}
			follows, err := db.CountEdges(ctx, u.ID)
			if err != nil {
				return err
			}
			fmt.Printf("@%-20s posts=%-6d following=%-6d observed: followers=%d posts=%d\n",
				u.Handle, posts, follows, u.FollowersCount, u.PostCount)
		}
		return nil
	})
	exitOn(err)
}

func printReport(r model.BatchReport) {
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("@%s/%s %s new=%d updated=%d discarded=%d (%s)",
			o.Handle, o.DataType, o.Status, o.Result.New, o.Result.Updated, o.Result.Discarded,
			o.Duration.Round(time.Millisecond))
		if o.Err != "" {
			line += " error=" + o.Err
		}
		fmt.Println(line)
	}
	fmt.Printf("batch: success=%d errors=%d new=%d duration=%s\n",
		r.SuccessCount, r.ErrorCount, r.NewRecords, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx
}

func exitOn(err error) {
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
