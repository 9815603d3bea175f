package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/config"
	"github.com/xkilldash9x/cartographer/internal/graph"
	"github.com/xkilldash9x/cartographer/internal/observability"
)

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Mark an element as manually skipped",
	Long: `Skip records an operator decision that an element should never be
activated, with a description of what it is. The decision is terminal; the
element leaves the pending set permanently.`,
	RunE: runSkip,
}

func init() {
	skipCmd.Flags().String("app", "", "logical application name")
	skipCmd.Flags().String("node", "", "node reference as screen::local_id")
	skipCmd.Flags().String("reason", "", "what the element is and why it is skipped")
	_ = skipCmd.MarkFlagRequired("app")
	_ = skipCmd.MarkFlagRequired("node")
	_ = skipCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(skipCmd)
}

func runSkip(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	logger := observability.GetLogger()

	appName, _ := cmd.Flags().GetString("app")
	nodeArg, _ := cmd.Flags().GetString("node")
	reason, _ := cmd.Flags().GetString("reason")

	screenID, localID, ok := strings.Cut(nodeArg, "::")
	if !ok || screenID == "" || localID == "" {
		return fmt.Errorf("invalid node reference %q (want screen::local_id)", nodeArg)
	}
	ref := schemas.NodeRef{ScreenID: screenID, LocalID: localID}

	docStore, closeStore, err := newReportStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	doc, err := docStore.Load(ctx, appName)
	if err != nil {
		return err
	}
	g, err := graph.FromDocument(doc, logger)
	if err != nil {
		return err
	}
	if err := g.ApplyOutcome(ref, graph.ManualSkip(reason), ""); err != nil {
		return err
	}
	if err := docStore.Save(ctx, g.Document()); err != nil {
		return err
	}

	logger.Info("Node marked as manually skipped",
		zap.String("app", appName), zap.String("node", ref.String()))
	return nil
}
