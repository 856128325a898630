package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"brandsync/internal/config"
	"brandsync/internal/keystore"
	"brandsync/internal/models"
	"brandsync/internal/services/history"
	"brandsync/internal/services/scheduler"
)

// defaultJobName names the job registered from SYNC_SCHEDULE
const defaultJobName = "brandsync"

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "brandsync",
		Short: "Reconcile a brand spreadsheet into CRM companies and custom objects",
		Long: `brandsync reads SPREADSHEET_PATH, creates a company for every brand whose
order code and order id are unknown to the CRM, and uploads one custom object
per row associated with its company.

All settings come from the environment or from .env and .env.local.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runOnce,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "schedule",
			Short: "Run the reconciliation on SYNC_SCHEDULE until interrupted",
			Args:  cobra.NoArgs,
			RunE:  a.runSchedule,
		},
		&cobra.Command{
			Use:   "plan",
			Short: "Show what a run would create without writing to the CRM",
			Args:  cobra.NoArgs,
			RunE:  a.showPlan,
		},
		&cobra.Command{
			Use:   "runs [run-id]",
			Short: "Show recent runs, or the details of one run",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.showRuns,
		},
		&cobra.Command{
			Use:   "login",
			Short: "Store the access token read from stdin in the OS keychain",
			Args:  cobra.NoArgs,
			RunE:  a.login,
		},
	)

	return root
}

func (a *App) runOnce(cmd *cobra.Command, _ []string) error {
	if err := a.prepareRun(); err != nil {
		return err
	}
	if err := a.startup(); err != nil {
		return err
	}
	defer a.shutdown()

	result, err := a.reconcile(cmd.Context(), a.cfg.SpreadsheetPath)
	if err != nil {
		return err
	}

	stats := result.Stats()
	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %s\n  rows %d, companies created %d/%d, objects created %d/%d, linked %d, unlinked %d, failed chunks %d\n",
		result.RunID, result.Status(), stats.Rows, stats.ParentsCreated, stats.ParentsPlanned,
		stats.ChildrenCreated, stats.ChildrenPlanned, stats.Linked, stats.Unlinked, stats.FailedChunks)
	if result.PartialIndex() {
		fmt.Fprintf(cmd.OutOrStdout(), "  company index was partial: %v\n", result.IndexErr)
	}
	return nil
}

func (a *App) showPlan(cmd *cobra.Command, _ []string) error {
	if err := a.prepareRun(); err != nil {
		return err
	}

	result, err := a.preview(cmd.Context(), a.cfg.SpreadsheetPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	linked := result.Plan.Linked()
	fmt.Fprintf(out, "rows %d, existing companies %d, new companies %d, objects %d (%d linked to existing companies)\n",
		result.Rows, result.ExistingParents, len(result.Plan.NewParents), len(result.Plan.Children), linked)
	if result.PartialIndex() {
		fmt.Fprintf(out, "company index was partial: %v\n", result.IndexErr)
	}
	if len(result.Plan.NewParents) == 0 {
		return nil
	}

	table := tablewriter.NewTable(out)
	table.Header("Name", "Order ID", "Order code")
	for _, p := range result.Plan.NewParents {
		if err := table.Append(p.Name, p.OrderID, p.OrderCode); err != nil {
			return err
		}
	}
	return table.Render()
}

func (a *App) runSchedule(cmd *cobra.Command, _ []string) error {
	if a.cfg.SyncSchedule == "" {
		return &config.ValidationError{Field: config.KeySyncSchedule, Message: "required for schedule"}
	}
	if err := a.prepareRun(); err != nil {
		return err
	}
	if err := a.startup(); err != nil {
		return err
	}
	defer a.shutdown()

	ctx := cmd.Context()
	sched := scheduler.NewService(ctx, a.db, a.scheduledRun, a.logger)
	if _, err := sched.UpsertJob(scheduler.UpsertJobRequest{
		Name:    defaultJobName,
		Cron:    a.cfg.SyncSchedule,
		Source:  a.cfg.SpreadsheetPath,
		Enabled: true,
	}); err != nil {
		return fmt.Errorf("failed to register schedule: %w", err)
	}
	if err := sched.Start(); err != nil {
		return err
	}

	a.logger.Info().Str("cron", a.cfg.SyncSchedule).Msg("Waiting for scheduled runs (Ctrl+C to stop)")
	<-ctx.Done()
	sched.Stop()
	return nil
}

func (a *App) showRuns(cmd *cobra.Command, args []string) error {
	if err := a.startup(); err != nil {
		return err
	}
	defer a.shutdown()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, failures, err := a.history.GetRun(args[0])
		if err != nil {
			return err
		}
		return printRun(out, run, failures)
	}

	runs, err := a.history.ListRuns(20)
	if err != nil {
		return err
	}
	return printRuns(out, runs)
}

func (a *App) login(cmd *cobra.Command, _ []string) error {
	fmt.Fprint(cmd.ErrOrStderr(), "Access token: ")
	token, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if err := keystore.SaveToken(token); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Access token stored in keychain")
	return nil
}

func printRuns(w io.Writer, runs []models.SyncRun) error {
	table := tablewriter.NewTable(w)
	table.Header("ID", "Started", "Status", "Rows", "Companies", "Objects", "Unlinked", "Failed chunks")
	for _, run := range runs {
		if err := table.Append(
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			strconv.Itoa(run.Stats.Rows),
			fmt.Sprintf("%d/%d", run.Stats.ParentsCreated, run.Stats.ParentsPlanned),
			fmt.Sprintf("%d/%d", run.Stats.ChildrenCreated, run.Stats.ChildrenPlanned),
			strconv.Itoa(run.Stats.Unlinked),
			strconv.Itoa(run.Stats.FailedChunks),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func printRun(w io.Writer, run *models.SyncRun, failures []models.ChunkFailure) error {
	fmt.Fprintf(w, "Run %s (%s)\nSource: %s\nStatus: %s\n", run.ID, run.StartedAt.Local().Format(time.DateTime), run.Source, run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w, strings.Join(history.Messages(run), "\n"))

	if len(failures) == 0 {
		return nil
	}

	table := tablewriter.NewTable(w)
	table.Header("Stream", "Chunk", "Start", "Size", "Error")
	for _, f := range failures {
		if err := table.Append(f.Stream, strconv.Itoa(f.Chunk), strconv.Itoa(f.Start), strconv.Itoa(f.Size), f.Error); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, f := range failures {
		if f.Response != "" {
			fmt.Fprintf(w, "%s chunk %d response: %s\n", f.Stream, f.Chunk, f.Response)
		}
	}
	return nil
}
