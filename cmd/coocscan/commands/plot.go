package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/graphmine/coocscan/internal/matrix"
	"github.com/graphmine/coocscan/internal/scanner"
)

const (
	// maxPlottedPairs caps the pair bar chart.
	maxPlottedPairs = 25

	// maxPlottedConcepts caps the exposure bar chart.
	maxPlottedConcepts = 25

	plotChartHeight = "500px"
	plotLabelSize   = 10
)

// PlotCommand holds flags for the plot command.
type PlotCommand struct {
	outputDir string
	htmlPath  string
}

// NewPlotCommand creates the plot cobra command.
func NewPlotCommand() *cobra.Command {
	pc := &PlotCommand{}

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render matrix charts to a standalone HTML page",
		RunE: func(_ *cobra.Command, _ []string) error {
			return pc.run()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&pc.outputDir, "output", "o", "", "scan output directory to plot")
	flags.StringVar(&pc.htmlPath, "html", "cooc_plot.html", "destination HTML file")

	err := cmd.MarkFlagRequired("output")
	if err != nil {
		panic(err)
	}

	return cmd
}

func (pc *PlotCommand) run() error {
	m, err := matrix.Read(filepath.Join(pc.outputDir, scanner.MatrixFileName))
	if err != nil {
		return err
	}

	sidecar, err := matrix.ReadIndexFile(filepath.Join(pc.outputDir, scanner.IndexFileName))
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = "Concept Co-occurrence"
	page.AddCharts(
		buildPairBarChart(m, sidecar),
		buildExposureBarChart(sidecar),
	)

	file, err := os.Create(pc.htmlPath)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}

	defer file.Close()

	err = page.Render(file)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	fmt.Fprintf(os.Stdout, "plot written to %s\n", pc.htmlPath)

	return nil
}

// buildPairBarChart charts the heaviest co-occurring concept pairs.
func buildPairBarChart(m *matrix.CSR, sidecar *matrix.IndexFile) *charts.Bar {
	pairs := topPairs(m, sidecar, maxPlottedPairs)

	labels := make([]string, len(pairs))
	values := make([]opts.BarData, len(pairs))

	for i, pair := range pairs {
		label := conceptLabel(sidecar, pair.A) + " ↔ " + conceptLabel(sidecar, pair.B)
		labels[len(pairs)-1-i] = label
		values[len(pairs)-1-i] = opts.BarData{Value: pair.Weight}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Top Concept Pairs", Subtitle: "Heaviest co-occurrence weights"}),
		charts.WithInitializationOpts(opts.Initialization{Height: plotChartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "value",
			AxisLabel: &opts.AxisLabel{FontSize: plotLabelSize},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category", Data: labels,
			AxisLabel: &opts.AxisLabel{FontSize: plotLabelSize},
		}),
	)

	bar.AddSeries("Weight", values)

	return bar
}

// buildExposureBarChart charts the most exposed concepts by diagonal count.
func buildExposureBarChart(sidecar *matrix.IndexFile) *charts.Bar {
	rows := make([]matrix.RowEntry, len(sidecar.Rows))
	copy(rows, sidecar.Rows)

	sort.Slice(rows, func(i, j int) bool { return rows[i].Diagonal > rows[j].Diagonal })

	shown := len(rows)
	if shown > maxPlottedConcepts {
		shown = maxPlottedConcepts
	}

	labels := make([]string, shown)
	values := make([]opts.BarData, shown)

	for i, row := range rows[:shown] {
		name := row.ID
		if row.Label != "" {
			name = row.Label
		}

		labels[shown-1-i] = name
		values[shown-1-i] = opts.BarData{Value: row.Diagonal}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Most Exposed Concepts", Subtitle: "Diagonal exposure counts"}),
		charts.WithInitializationOpts(opts.Initialization{Height: plotChartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "value",
			AxisLabel: &opts.AxisLabel{FontSize: plotLabelSize},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category", Data: labels,
			AxisLabel: &opts.AxisLabel{FontSize: plotLabelSize},
		}),
	)

	bar.AddSeries("Exposures", values)

	return bar
}

// conceptLabel prefers the human label over the raw identifier.
func conceptLabel(sidecar *matrix.IndexFile, id string) string {
	for _, row := range sidecar.Rows {
		if row.ID == id {
			if row.Label != "" {
				return row.Label
			}

			return row.ID
		}
	}

	return id
}
