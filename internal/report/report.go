// Package report builds human- and machine-readable summaries of a persisted
// exploration document.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
	"github.com/xkilldash9x/cartographer/internal/store"
)

// ScreenSummary is the per-screen slice of a report.
type ScreenSummary struct {
	ID             string  `json:"id"`
	Breadcrumb     string  `json:"breadcrumb"`
	Depth          int     `json:"depth"`
	TotalElements  int     `json:"totalElements"`
	Pending        int     `json:"pending"`
	Explored       int     `json:"explored"`
	NonInteractive int     `json:"nonInteractive"`
	ManualSkip     int     `json:"manualSkip"`
	Coverage       float64 `json:"coverage"`
}

// Report is a derived snapshot of one application's exploration progress.
type Report struct {
	AppName      string                  `json:"appName"`
	GeneratedAt  time.Time               `json:"generatedAt"`
	LastUpdated  time.Time               `json:"lastUpdated"`
	Stats        schemas.ExplorationStats `json:"stats"`
	TotalScreens int                     `json:"totalScreens"`
	TotalEdges   int                     `json:"totalEdges"`
	Coverage     float64                 `json:"coverage"`
	Screens      []ScreenSummary         `json:"screens"`
}

// Builder assembles reports from the document store.
type Builder struct {
	store store.DocumentStore
	log   *zap.Logger
}

func NewBuilder(docStore store.DocumentStore, logger *zap.Logger) *Builder {
	return &Builder{store: docStore, log: logger.With(zap.String("component", "report"))}
}

// Build loads and summarizes the application's document.
func (b *Builder) Build(ctx context.Context, appName string) (*Report, error) {
	doc, err := b.store.Load(ctx, appName)
	if err != nil {
		return nil, err
	}
	g, err := graph.FromDocument(doc, b.log)
	if err != nil {
		return nil, err
	}

	r := &Report{
		AppName:      doc.AppName,
		GeneratedAt:  time.Now().UTC(),
		LastUpdated:  doc.LastUpdated,
		Stats:        doc.Stats,
		TotalScreens: len(doc.Screens),
		TotalEdges:   len(doc.Edges),
		Coverage:     coverage(doc.Stats.Total, doc.Stats.Pending),
	}

	for _, id := range g.ScreenIDs() {
		screen := doc.Screens[id]
		s := ScreenSummary{
			ID:            id,
			Breadcrumb:    screen.Breadcrumb,
			Depth:         g.Depth(id),
			TotalElements: screen.TotalElements,
		}
		for _, node := range screen.Nodes {
			switch node.Status {
			case schemas.StatusPending:
				s.Pending++
			case schemas.StatusExplored:
				s.Explored++
			case schemas.StatusNonInteractive:
				s.NonInteractive++
			case schemas.StatusManualSkip:
				s.ManualSkip++
			}
		}
		s.Coverage = coverage(len(screen.Nodes), s.Pending)
		r.Screens = append(r.Screens, s)
	}
	return r, nil
}

// ToJSON serializes the report for downstream tooling.
func (r *Report) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing report: %w", err)
	}
	return data, nil
}

// WriteText renders the report as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Application: %s\n", r.AppName)
	fmt.Fprintf(w, "Last updated: %s\n", r.LastUpdated.Format(time.RFC3339))
	fmt.Fprintf(w, "Screens: %d   Edges: %d   Coverage: %.1f%%\n", r.TotalScreens, r.TotalEdges, r.Coverage*100)
	fmt.Fprintf(w, "Nodes: %d total, %d pending, %d explored, %d non-interactive\n\n",
		r.Stats.Total, r.Stats.Pending, r.Stats.Explored, r.Stats.NonInteractive)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCREEN\tDEPTH\tPENDING\tEXPLORED\tCOVERAGE\tBREADCRUMB")
	for _, s := range r.Screens {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\t%s\n",
			s.ID, s.Depth, s.Pending, s.Explored, s.Coverage*100, s.Breadcrumb)
	}
	return tw.Flush()
}

func coverage(total, pending int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(total-pending) / float64(total)
}
