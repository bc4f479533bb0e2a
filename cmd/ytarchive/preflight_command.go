package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ytarchive/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check binaries, credentials and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var pinger preflight.Pinger
			if st, err := ctx.ensureStore(); err == nil {
				pinger = st
			}
			results := preflight.RunAll(cmd.Context(), cfg, pinger)
			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					mark := "ok"
					if !r.Passed {
						mark = "FAIL"
					}
					if colorize {
						color := text.FgGreen
						if !r.Passed {
							color = text.FgRed
						}
						mark = color.Sprint(mark)
					}
					rows = append(rows, []string{r.Name, mark, r.Detail})
				}
				fmt.Fprintln(out, renderTable(textColumns("Check", "Result", "Detail"), rows))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
