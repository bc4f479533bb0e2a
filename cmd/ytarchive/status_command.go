package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ytarchive/internal/media"
	"ytarchive/internal/preflight"
	"ytarchive/internal/staging"
	"ytarchive/internal/store"
)

type statusReport struct {
	Videos        store.Stats               `json:"videos"`
	Accounts      []preflight.AccountStatus `json:"accounts"`
	OldestPending []*store.VideoRecord      `json:"oldest_pending"`
	Recovery      []*store.VideoRecord      `json:"recovery"`
	Staging       staging.Usage             `json:"staging"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var pendingLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show archive progress and quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			c := cmd.Context()

			var report statusReport
			if report.Videos, err = st.Stats(c); err != nil {
				return err
			}
			accounts, err := st.ListAccounts(c)
			if err != nil {
				return err
			}
			report.Accounts = preflight.Accounts(cfg, accounts)
			if report.OldestPending, err = st.NextPending(c, pendingLimit); err != nil {
				return err
			}
			if report.Recovery, err = st.NextDownloadedUnpushed(c); err != nil {
				return err
			}

			layout := media.Layout{Root: cfg.Paths.StagingDir}
			if report.Staging, err = staging.DiskUsage(layout.VideosDir(), layout.ThumbnailsDir()); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			renderStatus(cmd.OutOrStdout(), report, isTerminal(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	cmd.Flags().IntVar(&pendingLimit, "pending", 5, "Number of oldest pending videos to list")
	return cmd
}

func renderStatus(out io.Writer, report statusReport, colorize bool) {
	v := report.Videos
	section(out, "Videos", colorize)
	rows := [][]string{
		{"Total", strconv.Itoa(v.Total), ""},
		{"Pending", strconv.Itoa(v.Pending), percentOf(v.Pending, v.Total)},
		{"Downloaded", strconv.Itoa(v.Downloaded), percentOf(v.Downloaded, v.Total)},
		{"Pushed", strconv.Itoa(v.Pushed), percentOf(v.Pushed, v.Total)},
	}
	if v.AwaitingCleanup > 0 {
		rows = append(rows, []string{"Awaiting cleanup", strconv.Itoa(v.AwaitingCleanup), ""})
	}
	classes := make([]string, 0, len(v.ByClassification))
	for class := range v.ByClassification {
		classes = append(classes, string(class))
	}
	sort.Strings(classes)
	for _, class := range classes {
		rows = append(rows, []string{"  " + class, strconv.Itoa(v.ByClassification[store.Classification(class)]), ""})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "State"},
		{header: "Count", numeric: true},
		{header: "Share", numeric: true},
	}, rows))

	section(out, "Quota", colorize)
	fmt.Fprintln(out, renderAccounts(report.Accounts, colorize))

	if report.Staging.Files > 0 {
		fmt.Fprintf(out, "Staging: %d files, %s\n", report.Staging.Files, formatBytes(report.Staging.Bytes))
	}

	if len(report.Recovery) > 0 {
		section(out, "Awaiting upload", colorize)
		fmt.Fprintln(out, renderVideos(report.Recovery))
	}
	section(out, "Next pending", colorize)
	if len(report.OldestPending) == 0 {
		fmt.Fprintln(out, "Nothing pending")
		return
	}
	fmt.Fprintln(out, renderVideos(report.OldestPending))
}

func renderAccounts(accounts []preflight.AccountStatus, colorize bool) string {
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		ready := yesNo(a.Ready)
		if colorize {
			color := text.FgGreen
			if !a.Ready {
				color = text.FgRed
			}
			ready = color.Sprint(ready)
		}
		used, remaining, capacity := "-", "-", "-"
		if a.Provisioned {
			used = formatUnits(a.Consumed)
			remaining = formatUnits(a.Remaining)
			capacity = formatUnits(a.DailyCap)
		}
		rows = append(rows, []string{a.Name, string(a.Role), used, remaining, capacity, ready, a.Detail})
	}
	return renderTable([]column{
		{header: "Account"},
		{header: "Role"},
		{header: "Used", numeric: true},
		{header: "Remaining", numeric: true},
		{header: "Cap", numeric: true},
		{header: "Ready"},
		{header: "Detail", maxWidth: 48},
	}, rows)
}

func renderVideos(records []*store.VideoRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{rec.ID, string(rec.Classification), formatTimestamp(rec.PublishedAt), rec.Title})
	}
	cols := textColumns("ID", "Kind", "Published", "Title")
	cols[3].maxWidth = 60
	return renderTable(cols, rows)
}

func section(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", title)
	if colorize {
		line = text.Colors{text.FgBlue, text.Bold}.Sprint(line)
	}
	fmt.Fprintln(out, line)
}
