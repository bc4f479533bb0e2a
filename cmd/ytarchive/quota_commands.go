package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytarchive/internal/preflight"
	"ytarchive/internal/quota"
)

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and manage per-account quota",
	}
	quotaCmd.AddCommand(newQuotaListCommand(ctx))
	quotaCmd.AddCommand(newQuotaProvisionCommand(ctx))
	quotaCmd.AddCommand(newQuotaResetCommand(ctx))
	return quotaCmd
}

func newQuotaListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quota accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			accounts, err := st.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			statuses := preflight.Accounts(cfg, accounts)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAccounts(statuses, isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print accounts as JSON")
	return cmd
}

func newQuotaProvisionCommand(ctx *commandContext) *cobra.Command {
	var dailyCap int
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create or update ledger rows for every configured account",
		Long: `Provision writes one ledger row per configured account with the given daily cap.
Consumed units are kept; a cap below an account's consumed units is rejected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if dailyCap <= 0 {
				dailyCap = cfg.Quota.DailyCap
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			pool := newPool(cfg, quota.NewLedger(st, logger), logger)
			accounts := pool.Accounts(dailyCap)
			for _, acct := range accounts {
				if err := st.ProvisionAccount(cmd.Context(), acct); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Provisioned %d accounts with a daily cap of %s units\n", len(accounts), formatUnits(dailyCap))
			return nil
		},
	}
	cmd.Flags().IntVar(&dailyCap, "daily-cap", 0, "Daily cap in units (default from config)")
	return cmd
}

func newQuotaResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [account...]",
		Short: "Zero consumed units after the platform's daily reset",
		Long: `Reset zeroes consumed units on the named accounts, or on every account when
none are named. Run it once a day after the platform quota resets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			for _, name := range args {
				if _, err := st.GetAccount(cmd.Context(), name); err != nil {
					return err
				}
			}
			n, err := st.ResetQuota(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d accounts\n", n)
			return nil
		},
	}
}

