package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/cartographer/internal/config"
	"github.com/xkilldash9x/cartographer/internal/observability"
	"github.com/xkilldash9x/cartographer/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize an application's exploration progress",
	Long: `Report loads the persisted exploration document for an application and
prints per-screen coverage, either as an aligned table or as JSON for
downstream tooling.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("app", "", "logical application name of the document to summarize")
	reportCmd.Flags().String("format", "text", "output format: text or json")
	_ = reportCmd.MarkFlagRequired("app")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()
	logger := observability.GetLogger()

	appName, _ := cmd.Flags().GetString("app")
	format, _ := cmd.Flags().GetString("format")

	docStore, closeStore, err := newReportStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rep, err := report.NewBuilder(docStore, logger).Build(ctx, appName)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		data, err := rep.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	case "text":
		return rep.WriteText(os.Stdout)
	default:
		return fmt.Errorf("unknown report format %q (want text or json)", format)
	}
}
