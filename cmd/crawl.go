package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrawlCmd() *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl to completion and prints its summary",
		Long: `Crawls the catalog until the target record count is reached or every
domain has been visited, saves the deduplicated corpus, and prints the final
run status as JSON. Interrupting the command cancels the run and keeps the
records gathered so far out of the store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, target)
		},
	}
	cmd.Flags().IntVar(&target, "target", 0, "number of records to collect (default run.target_count)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, target int) error {
	appInstance, cfg, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if target <= 0 {
		target = cfg.Run.TargetCount
	}
	logger := appInstance.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runs := appInstance.GetRuns()
	h, err := runs.Start(ctx, target)
	if err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		logger.Info("interrupt received, cancelling crawl", zap.String("run_id", h.ID()))
		h.Cancel()
		<-h.Done()
	}
	res, _ := h.Result()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runs.Status()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		return fmt.Errorf("crawl failed: %w", res.Err)
	}
	return nil
}
