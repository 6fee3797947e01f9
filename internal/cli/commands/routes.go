package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/cli/ui"
)

// NewRoutesCommand creates the routes command
func NewRoutesCommand(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the HTTP routes served by dimgraph serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, nil, zap.NewNop())
			if err != nil {
				return err
			}
			defer a.close()

			routes := a.router.Routes()
			if output != formatTable {
				return write(cmd.OutOrStdout(), output, routes)
			}

			t := ui.NewTable(cmd.OutOrStdout(), g.noColor, "METHOD", "PATTERN", "NAME", "PARAMS")
			for _, r := range routes {
				params := make([]string, 0, len(r.Parameters))
				for _, p := range r.Parameters {
					params = append(params, p.Name+":"+p.Type)
				}
				t.AddRow(r.Method, r.Pattern, r.Name, strings.Join(params, " "))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, yaml or json")
	return cmd
}
