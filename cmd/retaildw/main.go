package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/datakiln/retaildw/internal/app"
	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/pipeline"
	"github.com/datakiln/retaildw/internal/jobs"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "retaildw: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cmdErr error
	switch os.Args[1] {
	case "run":
		cmdErr = cmdRun(ctx, a, os.Args[2:])
	case "enqueue":
		cmdErr = cmdEnqueue(ctx, a, os.Args[2:])
	case "worker":
		cmdErr = cmdWorker(ctx, a)
	case "rollback":
		cmdErr = cmdRollback(ctx, a, os.Args[2:])
	case "status":
		cmdErr = cmdStatus(ctx, a, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		a.Log.Error("command failed", "command", os.Args[1], "error", cmdErr)
		a.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: retaildw <command> [flags]

commands:
  run      -config <job.yaml>    run one pipeline job in-process
  enqueue  -config <job.yaml>    queue a pipeline job for the worker pool
  worker                         run the background worker pool
  rollback -version <uuid>       remove a finalized version's fact rows
  status   [-job <id>] [-n <n>]  show recent version history`)
}

func cmdRun(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to job config YAML")
	_ = fs.Parse(args)
	if *configPath == "" {
		return fmt.Errorf("run: -config is required")
	}

	cfg, err := pipeline.LoadJobConfig(*configPath)
	if err != nil {
		return err
	}

	version, err := a.Runner.Run(ctx, cfg)
	if version != nil {
		printVersion(version)
	}
	return err
}

func cmdEnqueue(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	configPath := fs.String("config", "", "path to job config YAML")
	_ = fs.Parse(args)
	if *configPath == "" {
		return fmt.Errorf("enqueue: -config is required")
	}

	cfg, err := pipeline.LoadJobConfig(*configPath)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	job, err := a.Repos.Jobs.Create(dbctx.New(ctx), &types.PipelineJob{
		JobID:   cfg.JobID,
		JobType: jobs.TypePipelineRun,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	fmt.Printf("queued job %s (job_id=%s)\n", job.ID, job.JobID)
	return nil
}

func cmdWorker(ctx context.Context, a *app.App) error {
	return a.Worker.Start(ctx)
}

func cmdRollback(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	versionStr := fs.String("version", "", "version id to roll back")
	_ = fs.Parse(args)
	if *versionStr == "" {
		return fmt.Errorf("rollback: -version is required")
	}
	versionID, err := uuid.Parse(*versionStr)
	if err != nil {
		return fmt.Errorf("rollback: bad version id: %w", err)
	}

	removed, err := a.Runner.Rollback(ctx, versionID)
	if err != nil {
		return err
	}
	fmt.Printf("rolled back version %s, removed %d fact rows\n", versionID, removed)
	return nil
}

func cmdStatus(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jobID := fs.String("job", "", "filter by job id")
	limit := fs.Int("n", 10, "number of versions to show")
	_ = fs.Parse(args)

	versions, err := a.Repos.Versions.History(dbctx.New(ctx), *jobID, *limit)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Println("no versions found")
		return nil
	}
	for _, v := range versions {
		printVersion(v)
	}
	return nil
}

func printVersion(v *types.PipelineVersion) {
	fmt.Printf("%s  %-11s  job=%s  processed=%d inserted=%d rejected=%d quality=%.4f  started=%s\n",
		v.ID, v.Status, v.JobID, v.RecordsProcessed, v.RecordsInserted, v.RecordsRejected,
		v.QualityScore, v.StartedAt.Format("2006-01-02 15:04:05"))
}
