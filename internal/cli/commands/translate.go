package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dimgraph/dimgraph/internal/cli/ui"
	"github.com/dimgraph/dimgraph/internal/translate"
)

// NewTranslateCommand creates the translate command group
func NewTranslateCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Convert between persisted join records and working configurations",
	}
	cmd.AddCommand(newToWorkingCommand(g))
	cmd.AddCommand(newToPersistedCommand(g))
	return cmd
}

func newToWorkingCommand(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "working FILE",
		Short: "Group persisted join records into a working configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), output, translate.ToWorking(records))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "output format: yaml or json")
	return cmd
}

func newToPersistedCommand(g *globals) *cobra.Command {
	var output string
	var strict bool

	cmd := &cobra.Command{
		Use:   "persisted FILE",
		Short: "Flatten a working configuration into join records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := readWorking(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if strict {
				if v := translate.ValidateForSave(w); !v.Success {
					printValidation(cmd.ErrOrStderr(), v, ui.LevelError, g.noColor)
					return v.Err()
				}
			}
			return write(cmd.OutOrStdout(), output, translate.ToPersisted(w))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "output format: yaml or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "refuse configurations that fail validation")
	return cmd
}

// NewValidateCommand creates the validate command
func NewValidateCommand(g *globals) *cobra.Command {
	var records bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a working configuration before saving it",
		Long: `Check that the fact table has an id and name and that every dimension
has its table and join fields chosen. Exits non-zero when a check fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w translate.Working
			if records {
				recs, err := readRecords(args[0], cmd.InOrStdin())
				if err != nil {
					return err
				}
				w = translate.ToWorking(recs)
			} else {
				var err error
				if w, err = readWorking(args[0], cmd.InOrStdin()); err != nil {
					return err
				}
			}

			v := translate.Validate(w)
			if !v.Success {
				printValidation(cmd.ErrOrStderr(), v, ui.LevelError, g.noColor)
				return g.problem(ui.Problem{
					Context: "validate",
					Message: fmt.Sprintf("%s: %d problem(s)", args[0], len(v.Errors)),
				})
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s: fact %s with %d dimension(s)", args[0], w.Fact.ID, len(w.Dims)), g.noColor)
			return nil
		},
	}
	cmd.Flags().BoolVar(&records, "records", false, "FILE holds persisted join records")
	return cmd
}

// printValidation reports each failed check as a detail line
func printValidation(w io.Writer, v translate.Validation, level ui.Level, noColor bool) {
	details := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		details = append(details, fe.Error())
	}
	ui.WriteProblem(w, ui.Problem{
		Level:   level,
		Context: "validation",
		Message: "the configuration is incomplete",
		Details: details,
		NoColor: noColor,
	})
}
