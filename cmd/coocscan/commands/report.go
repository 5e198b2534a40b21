package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/graphmine/coocscan/internal/matrix"
	"github.com/graphmine/coocscan/internal/scanner"
	"github.com/graphmine/coocscan/pkg/config"
)

// defaultTopPairs caps the pair listing when --top is not given.
const defaultTopPairs = 20

// ErrUnknownFormat indicates an unsupported report output format.
var ErrUnknownFormat = errors.New("unknown report format")

// ReportCommand holds flags for the report command.
type ReportCommand struct {
	configPath  string
	outputDir   string
	format      string
	top         int
	holes       bool
	holeRatio   float64
	minDiagonal float64
}

// NewReportCommand creates the report cobra command.
func NewReportCommand() *cobra.Command {
	rc := &ReportCommand{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a built matrix: top pairs and structural holes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&rc.configPath, "config", "", "config file path (default .coocscan.yaml)")
	flags.StringVarP(&rc.outputDir, "output", "o", "", "scan output directory to report on")
	flags.StringVarP(&rc.format, "format", "f", "text", "output format: text, json, yaml")
	flags.IntVar(&rc.top, "top", defaultTopPairs, "number of heaviest pairs to list")
	flags.BoolVar(&rc.holes, "holes", false, "include under-connected pair detection")
	flags.Float64Var(&rc.holeRatio, "hole-ratio", config.DefaultHoleRatio, "observed/expected ratio below which a pair is a hole")
	flags.Float64Var(&rc.minDiagonal, "hole-min-diagonal", config.DefaultHoleMinDia, "exposure floor for hole candidates")

	return cmd
}

// reportPair is one off-diagonal cell resolved to identifier labels.
type reportPair struct {
	A      string  `json:"a"      yaml:"a"`
	B      string  `json:"b"      yaml:"b"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// reportHole is one under-connected pair with its expectation.
type reportHole struct {
	A        string  `json:"a"        yaml:"a"`
	B        string  `json:"b"        yaml:"b"`
	Observed float64 `json:"observed" yaml:"observed"`
	Expected float64 `json:"expected" yaml:"expected"`
	Ratio    float64 `json:"ratio"    yaml:"ratio"`
}

// reportDoc is the full report payload for structured formats.
type reportDoc struct {
	Summary  matrix.RunSummary `json:"summary"         yaml:"summary"`
	TopPairs []reportPair      `json:"top_pairs"       yaml:"top_pairs"`
	Holes    []reportHole      `json:"holes,omitempty" yaml:"holes,omitempty"`
}

func (rc *ReportCommand) run(cmd *cobra.Command) error {
	outputDir, err := rc.resolveOutputDir(cmd)
	if err != nil {
		return err
	}

	m, err := matrix.Read(filepath.Join(outputDir, scanner.MatrixFileName))
	if err != nil {
		return err
	}

	err = m.VerifySymmetric()
	if err != nil {
		return err
	}

	sidecar, err := matrix.ReadIndexFile(filepath.Join(outputDir, scanner.IndexFileName))
	if err != nil {
		return err
	}

	doc := rc.buildDoc(m, sidecar)

	return rc.render(os.Stdout, doc)
}

// resolveOutputDir takes the flag when set, the config file otherwise.
func (rc *ReportCommand) resolveOutputDir(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("output") {
		return rc.outputDir, nil
	}

	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return "", err
	}

	if cfg.Output.Dir == "" {
		return "", config.ErrMissingOutputDir
	}

	if !cmd.Flags().Changed("hole-ratio") {
		rc.holeRatio = cfg.Report.HoleRatio
	}

	if !cmd.Flags().Changed("hole-min-diagonal") {
		rc.minDiagonal = cfg.Report.HoleMinDiagonal
	}

	err = cfg.ValidateReport()
	if err != nil {
		return "", err
	}

	return cfg.Output.Dir, nil
}

func (rc *ReportCommand) buildDoc(m *matrix.CSR, sidecar *matrix.IndexFile) *reportDoc {
	doc := &reportDoc{
		Summary:  sidecar.Summary,
		TopPairs: topPairs(m, sidecar, rc.top),
	}

	if rc.holes {
		holes := m.Holes(matrix.HoleParams{
			MaxRatio:    rc.holeRatio,
			MinDiagonal: rc.minDiagonal,
			Limit:       rc.top,
		})

		doc.Holes = make([]reportHole, 0, len(holes))
		for _, h := range holes {
			doc.Holes = append(doc.Holes, reportHole{
				A:        sidecar.Rows[h.RowA].ID,
				B:        sidecar.Rows[h.RowB].ID,
				Observed: h.Observed,
				Expected: h.Expected,
				Ratio:    h.Ratio,
			})
		}
	}

	return doc
}

// topPairs collects the heaviest off-diagonal cells, one entry per pair.
func topPairs(m *matrix.CSR, sidecar *matrix.IndexFile, limit int) []reportPair {
	var pairs []reportPair

	for row := int32(0); row < m.N; row++ {
		cols, vals := m.Row(row)

		for i, col := range cols {
			// Upper triangle only: each pair appears once.
			if col <= row {
				continue
			}

			pairs = append(pairs, reportPair{
				A:      sidecar.Rows[row].ID,
				B:      sidecar.Rows[col].ID,
				Weight: vals[i],
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Weight > pairs[j].Weight })

	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	return pairs
}

func (rc *ReportCommand) render(w io.Writer, doc *reportDoc) error {
	switch rc.format {
	case "text":
		renderText(w, doc)

		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(doc)
	case "yaml":
		return yaml.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, rc.format)
	}
}

func renderText(w io.Writer, doc *reportDoc) {
	fmt.Fprintf(w, "scan: %d records over %d units, %d matrix entries\n\n",
		doc.Summary.RecordsTotal,
		doc.Summary.UnitsOK+doc.Summary.UnitsPartial+doc.Summary.UnitsFailed,
		doc.Summary.NNZ)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "Concept A", "Concept B", "Weight"})

	for i, pair := range doc.TopPairs {
		tw.AppendRow(table.Row{i + 1, pair.A, pair.B, fmt.Sprintf("%.3f", pair.Weight)})
	}

	tw.Render()

	if doc.Holes == nil {
		return
	}

	fmt.Fprintf(w, "\nunder-connected pairs (%d):\n", len(doc.Holes))

	hw := table.NewWriter()
	hw.SetOutputMirror(w)
	hw.SetStyle(table.StyleLight)
	hw.AppendHeader(table.Row{"Concept A", "Concept B", "Observed", "Expected", "Ratio"})

	for _, hole := range doc.Holes {
		hw.AppendRow(table.Row{
			hole.A, hole.B,
			fmt.Sprintf("%.3f", hole.Observed),
			fmt.Sprintf("%.3f", hole.Expected),
			fmt.Sprintf("%.4f", hole.Ratio),
		})
	}

	hw.Render()
}
