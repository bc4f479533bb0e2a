package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <video-id>",
		Short: "Re-apply title, description and tags to an archived video",
		Long: `Edit rebuilds the metadata of an already uploaded video from its stored source
record and updates the archived copy. It costs 50 units on an upload account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunLock(cmd, ctx, func(runCtx context.Context, rt *app) error {
				if err := rt.provisionAccounts(runCtx); err != nil {
					return err
				}
				remote, err := rt.orch.EditMetadata(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated metadata of %s (archived as %s)\n", args[0], remote)
				return nil
			})
		},
	}
}
