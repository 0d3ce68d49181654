package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/internal/infrastructure/cache"
	"github.com/ouredu/request-tracker/internal/infrastructure/queue"
	"github.com/ouredu/request-tracker/pkg/config"
)

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify tracker configuration and connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Fprintf(out, "config:   ok (enabled=%t async=%t detail=%s dedup=%t)\n",
				cfg.Tracking.Enabled, cfg.Tracking.Async, cfg.Tracking.Detail.Mode, cfg.Tracking.Detail.Dedup)

			e, err := setup()
			if err != nil {
				fmt.Fprintf(out, "database: FAILED (%v)\n", err)
				return err
			}
			sqlDB, err := e.db.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				fmt.Fprintf(out, "database: FAILED (%v)\n", err)
				return err
			}
			fmt.Fprintln(out, "database: ok")

			redisClient, err := cache.NewRedisClient(cache.NewConfigFromEnv(cfg))
			if err != nil {
				fmt.Fprintf(out, "redis:    FAILED (%v)\n", err)
				if cfg.Tracking.Async {
					return fmt.Errorf("async tracking requires redis: %w", err)
				}
				return nil
			}
			defer redisClient.Close()
			fmt.Fprintln(out, "redis:    ok")

			broker := queue.NewTaskBroker(redisClient.Client(), cfg.Tracking.Queue.Name, cfg.Tracking.Queue.ResultsTTL)
			pending, err := broker.QueueLength(ctx)
			if err != nil {
				return fmt.Errorf("queue length: %w", err)
			}
			failed, err := broker.DeadLetterLength(ctx)
			if err != nil {
				return fmt.Errorf("dead-letter length: %w", err)
			}
			fmt.Fprintf(out, "queue:    %d pending, %d dead-lettered (%s)\n", pending, failed, cfg.Tracking.Queue.Name)

			// Round-trip a probe task through the result store
			id, err := broker.EnqueueSnapshot(ctx, probeSnapshot())
			if err != nil {
				return fmt.Errorf("enqueue probe: %w", err)
			}
			result, err := broker.GetTaskResult(ctx, id)
			if err != nil {
				return fmt.Errorf("probe result: %w", err)
			}
			fmt.Fprintf(out, "probe:    task %s status %s\n", id, result.Status)
			return nil
		},
	}
}

func probeSnapshot() (snap tracking.RequestSnapshot) {
	snap.Method = "GET"
	snap.Path = "health/probe"
	snap.Timestamp = time.Now().UTC()
	return snap
}
