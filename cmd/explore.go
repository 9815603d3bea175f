package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/internal/config"
	"github.com/xkilldash9x/cartographer/internal/observability"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Explore a target application and build its screen graph",
	Long: `Explore navigates to the target, then repeatedly selects a pending
element, activates it, observes the outcome and persists the updated graph.
The run stops when no pending elements remain, the iteration cap is hit, or
the process is interrupted; an interrupted run resumes where it left off.`,
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().String("app", "", "logical application name; the exploration document's identity")
	exploreCmd.Flags().String("target", "", "URL of the running application")
	exploreCmd.Flags().String("policy", "fifo", "pending-node selection policy: fifo or breadth")
	exploreCmd.Flags().Int("max-iterations", 0, "stop after this many activation cycles (0 = unbounded)")
	_ = exploreCmd.MarkFlagRequired("app")
	_ = exploreCmd.MarkFlagRequired("target")
}

func runExplore(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logger := observability.GetLogger()

	if maxIter, err := cmd.Flags().GetInt("max-iterations"); err == nil && maxIter > 0 {
		cfg.Engine.MaxIterations = maxIter
	}

	ctx := cmd.Context()
	components, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Shutdown()

	if err := components.Browser.Navigate(ctx, cfg.Explore.Target); err != nil {
		return err
	}

	if err := components.Session.Run(ctx); err != nil {
		// An interrupt between iterations is a clean stop: every committed
		// outcome is already persisted.
		if errors.Is(err, context.Canceled) {
			logger.Info("Exploration interrupted; progress saved",
				zap.String("app", cfg.Explore.AppName))
			return nil
		}
		return err
	}
	return nil
}
