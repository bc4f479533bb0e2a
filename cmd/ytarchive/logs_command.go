package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ytarchive/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var videoID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			if path == "" {
				return errors.New("file logging is disabled (paths.log_dir is empty)")
			}

			out := cmd.OutOrStdout()
			emit := func(line string) error {
				if videoID != "" && !strings.Contains(line, videoID) {
					return nil
				}
				_, err := fmt.Fprintln(out, line)
				return err
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				if err := emit(line); err != nil {
					return err
				}
			}
			if !follow {
				return nil
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return logs.Follow(signalCtx, path, offset, logs.DefaultPoll, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&videoID, "video", "", "Only show lines mentioning this video id")
	return cmd
}
