package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dimgraph/dimgraph/internal/cli/ui"
	"github.com/dimgraph/dimgraph/internal/render"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/translate"
)

// NewLayoutCommand creates the layout command
func NewLayoutCommand(g *globals) *cobra.Command {
	var (
		columnsPath string
		useDB       bool
		output      string
		working     bool
	)

	cmd := &cobra.Command{
		Use:   "layout FILE",
		Short: "Render a model configuration and print node positions",
		Long: `Render the persisted join records in FILE (YAML or JSON, "-" for stdin)
onto an empty canvas and print where each table lands.

Table columns come from --columns, a file mapping table ids to field lists,
or from the configured database with --db. Without either, each node shows
only its join fields.`,
		Example: `  dimgraph layout joins.yaml
  dimgraph layout joins.json --columns columns.yaml -o json
  dimgraph layout --working canvas.yaml --db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			logger, err := g.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()

			var w translate.Working
			if working {
				w, err = readWorking(args[0], cmd.InOrStdin())
			} else {
				var records []translate.DimJoinConfig
				records, err = readRecords(args[0], cmd.InOrStdin())
				w = translate.ToWorking(records)
			}
			if err != nil {
				return err
			}
			if v := translate.Validate(w); !v.Success {
				printValidation(cmd.ErrOrStderr(), v, ui.LevelWarning, g.noColor)
			}

			var source render.FieldSource
			switch {
			case columnsPath != "":
				cols, err := readColumns(columnsPath)
				if err != nil {
					return err
				}
				source = cols
			case useDB:
				if cfg.Database.URL == "" {
					return g.problem(ui.ConfigProblem(fmt.Errorf("--db needs database.url"), g.noColor))
				}
				st, err := openStore(ctx, cfg, logger)
				if err != nil {
					return g.problem(ui.DatabaseProblem(err, g.noColor))
				}
				defer st.Close()
				cache, err := newCache(ctx, cfg, st, logger)
				if err != nil {
					return err
				}
				defer cache.Close()
				source = cache
			}

			renderer := render.New(source, render.WithOptions(cfg.RenderOptions()), render.WithLogger(logger.Named("render")))
			canvas := scene.NewMemoryCanvas()
			snap, err := renderer.RenderFromConfig(ctx, canvas, w)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("nothing to render: the configuration has no fact table")
			}

			out := cmd.OutOrStdout()
			if output != formatTable {
				return write(out, output, snap)
			}
			printNodes(out, snap, g.noColor)
			printStale(cmd.ErrOrStderr(), snap.Stale, g.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&columnsPath, "columns", "", "file mapping table ids to their fields")
	cmd.Flags().BoolVar(&useDB, "db", false, "read columns from the configured database")
	cmd.Flags().BoolVar(&working, "working", false, "FILE holds a working configuration instead of join records")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, yaml or json")
	cmd.MarkFlagsMutuallyExclusive("columns", "db")
	return cmd
}

// printNodes lists the node cells of snap
func printNodes(w io.Writer, snap *render.Snapshot, noColor bool) {
	t := ui.NewTable(w, noColor, "NODE", "TYPE", "SIDE", "X", "Y", "WIDTH", "HEIGHT", "ROWS")
	edges := 0
	for _, c := range snap.Cells {
		if c.Kind != scene.KindNode {
			if c.Kind == scene.KindEdge {
				edges++
			}
			continue
		}
		t.AddRow(
			c.ID,
			str(c.Props[render.PropNodeType]),
			str(c.Props[render.PropSide]),
			num(c.Props[render.PropX]),
			num(c.Props[render.PropY]),
			num(c.Props[render.PropWidth]),
			num(c.Props[render.PropHeight]),
			str(c.Props[render.PropTotal]),
		)
	}
	t.Render()

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("nodes", strconv.Itoa(t.Len()))
	kv.AddRow("edges", strconv.Itoa(edges))
	kv.AddRow("bounds", fmt.Sprintf("%s x %s at (%s, %s)",
		num(snap.Bounds.Width), num(snap.Bounds.Height), num(snap.Bounds.X), num(snap.Bounds.Y)))
	fmt.Fprintln(w)
	kv.Render()
}

// printStale warns about join references that no longer resolve
func printStale(w io.Writer, stale []render.StaleRef, noColor bool) {
	if len(stale) == 0 {
		return
	}
	details := make([]string, 0, len(stale))
	for _, s := range stale {
		d := fmt.Sprintf("%s: field %s of %s (%s)", s.NodeID, s.FieldID, s.TableID, s.Reason)
		if s.Expected != "" || s.Actual != "" {
			d += fmt.Sprintf(" expected %q, got %q", s.Expected, s.Actual)
		}
		details = append(details, d)
	}
	ui.WriteProblem(w, ui.Problem{
		Level:   ui.LevelWarning,
		Context: "stale joins",
		Message: fmt.Sprintf("%d join reference(s) no longer match the table metadata", len(stale)),
		Details: details,
		NoColor: noColor,
	})
}

func str(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

func num(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case nil:
		return "-"
	default:
		return fmt.Sprint(n)
	}
}
