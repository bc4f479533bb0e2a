package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ytarchive/internal/credentials"
	"ytarchive/internal/services"
	"ytarchive/internal/youtube"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth <uploader>",
		Short: "Authorize an upload account and store its token",
		Long: `Auth runs the OAuth consent flow for one configured uploader. A browser URL is
printed; after consent the refresh token is written to the uploader's token_file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			up, ok := cfg.Uploader(args[0])
			if !ok {
				return services.Wrap(services.ErrConfiguration, "auth", "lookup", fmt.Sprintf("no uploader named %q in config", args[0]), nil)
			}
			oauthCfg, err := youtube.Authenticator{}.OAuthConfig(credentials.Credential{
				Name:             up.Name,
				ClientSecretFile: up.ClientSecretFile,
				TokenFile:        up.TokenFile,
			})
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			tok, err := youtube.AuthorizeLoopback(signalCtx, oauthCfg, func(url string) {
				fmt.Fprintf(out, "Open this URL and sign in as the %s destination account:\n\n  %s\n\n", up.Name, url)
			})
			if err != nil {
				return err
			}
			if err := youtube.SaveToken(up.TokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token for %s saved to %s\n", up.Name, up.TokenFile)
			return nil
		},
	}
}
