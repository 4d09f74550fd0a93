package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/hyperscrape/internal/config"
	"github.com/nao1215/hyperscrape/internal/database"
	"github.com/nao1215/hyperscrape/internal/model"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// ErrNotEnoughRuns is returned when a diff is requested with fewer than two
// stored runs.
var ErrNotEnoughRuns = errors.New("at least 2 stored runs are required for a diff")

// NewHistoryCmd creates the history command.
// This command reads crawl graphs saved with 'hyperscrape crawl --db'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and compare saved crawl runs",
		Long: `History reads the crawl graphs saved with 'hyperscrape crawl --db'.

Without a subcommand it lists the stored runs, newest first. Run IDs may be
abbreviated to any unique prefix.

Examples:
  # List the latest runs
  hyperscrape history

  # Show drives gained and lost between the two latest runs
  hyperscrape history diff

  # Compare two specific runs
  hyperscrape history diff 3f2a 9c41

  # Re-render a stored run as Markdown
  hyperscrape history show 3f2a --markdown

  # Show which drives led to a key in a run
  hyperscrape history show 3f2a --referrers 0123...cdef`,
		Args: cobra.NoArgs,
		RunE: runHistoryListCmd,
	}

	cmd.PersistentFlags().String("db", config.XDGDataDir(),
		"Directory holding hyperscrape.db")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newHistoryDiffCmd())
	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [old-run new-run]",
		Short: "Compare the drive sets of two runs",
		Long: `Diff lists the drives that were found only in one of two runs and the
drives whose outcome changed. Without arguments the two latest runs are
compared.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 run IDs, received %d", len(args))
			}
			return nil
		},
		RunE: runHistoryDiffCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output the diff in JSON format")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the report of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("referrers", "r", "",
		"Only list the drives that linked to or mounted this key")
	return cmd
}

// openHistoryDB opens the database named by the --db flag.
func openHistoryDB(cmd *cobra.Command) (*database.GraphDB, error) {
	dbDir, err := cmd.Flags().GetString("db")
	if err != nil {
		return nil, err
	}
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// runHistoryListCmd lists stored runs.
func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

// printRuns writes the run table.
func printRuns(out io.Writer, runs []database.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs found in the database.")
		fmt.Fprintln(out, "\nUse 'hyperscrape crawl --db <seed>' to save a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-4s  %7s  %7s  %7s  %8s  %s\n",
		"ID", "Started", "Order", "Visited", "Pending", "Mounted", "Failures", "State")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 84))

	for _, r := range runs {
		state := "complete"
		if r.Canceled {
			state = "canceled"
		}
		fmt.Fprintf(out, "  %-8s  %-19s  %-4s  %7d  %7d  %7d  %8d  %s\n",
			shortRunID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Order,
			r.Visited,
			r.Pending,
			r.Mounted,
			r.Failures,
			state,
		)
	}

	fmt.Fprintln(out, "\nUse 'hyperscrape history diff' to compare the latest two runs.")
	return nil
}

// shortRunID abbreviates a run ID for display.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveRunID expands a unique run ID prefix to the full ID.
func resolveRunID(ctx context.Context, db *database.GraphDB, prefix string) (string, error) {
	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", database.ErrRunNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

// runHistoryDiffCmd compares two runs.
func runHistoryDiffCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	var oldID, newID string
	if len(args) == 2 {
		if oldID, err = resolveRunID(ctx, db, args[0]); err != nil {
			return err
		}
		if newID, err = resolveRunID(ctx, db, args[1]); err != nil {
			return err
		}
	} else {
		runs, err := db.ListRuns(ctx, 2)
		if err != nil {
			return err
		}
		if len(runs) < 2 {
			return fmt.Errorf("%w (found %d)", ErrNotEnoughRuns, len(runs))
		}
		oldID, newID = runs[1].ID, runs[0].ID
	}

	diff, err := db.DiffRuns(ctx, oldID, newID)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputDiffJSON(cmd.OutOrStdout(), diff)
	}
	return outputDiffText(cmd.OutOrStdout(), diff)
}

// diffJSON is the JSON form of a run diff.
type diffJSON struct {
	OldRunID string                  `json:"old_run_id"`
	NewRunID string                  `json:"new_run_id"`
	Added    []string                `json:"added"`
	Removed  []string                `json:"removed"`
	Changed  []database.StatusChange `json:"changed"`
}

// outputDiffJSON writes the diff as indented JSON.
func outputDiffJSON(out io.Writer, diff *database.RunDiff) error {
	v := diffJSON{
		OldRunID: diff.OldRunID,
		NewRunID: diff.NewRunID,
		Added:    nonNil(diff.Added),
		Removed:  nonNil(diff.Removed),
		Changed:  diff.Changed,
	}
	if v.Changed == nil {
		v.Changed = []database.StatusChange{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// outputDiffText writes the diff for humans.
func outputDiffText(out io.Writer, diff *database.RunDiff) error {
	fmt.Fprintf(out, "Comparing run %s -> %s\n\n", shortRunID(diff.OldRunID), shortRunID(diff.NewRunID))

	if !diff.HasChanges() {
		fmt.Fprintln(out, "No changes: both runs visited the same drives with the same outcome.")
		return nil
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(out, "New drives (%d):\n", len(diff.Added))
		for _, k := range diff.Added {
			fmt.Fprintf(out, "  + %s\n", k)
		}
		fmt.Fprintln(out)
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(out, "Drives no longer reached (%d):\n", len(diff.Removed))
		for _, k := range diff.Removed {
			fmt.Fprintf(out, "  - %s\n", k)
		}
		fmt.Fprintln(out)
	}
	if len(diff.Changed) > 0 {
		fmt.Fprintf(out, "Changed outcome (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(out, "  ~ %s: %s -> %s\n", c.Key, c.OldStatus, c.NewStatus)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// runHistoryShowCmd prints a stored report.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	referrersOf, err := cmd.Flags().GetString("referrers")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	runID, err := resolveRunID(ctx, db, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if referrersOf != "" {
		key, ok := model.NormalizeKey(referrersOf)
		if !ok {
			return fmt.Errorf("invalid drive key %q: %w", referrersOf, model.ErrInvalidKey)
		}
		refs, err := db.Referrers(ctx, runID, key.String())
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Fprintf(out, "No drive referenced %s in run %s.\n", key.Short(), shortRunID(runID))
			return nil
		}
		fmt.Fprintf(out, "Drives referencing %s in run %s (%d):\n", key.Short(), shortRunID(runID), len(refs))
		for _, r := range refs {
			fmt.Fprintf(out, "  %s\n", r)
		}
		return nil
	}

	crawlReport, err := db.GetReport(ctx, runID)
	if err != nil {
		return err
	}
	_, err = newReportWriter(jsonOutput, markdownOutput, getVerboseFlag(cmd), out).Write(crawlReport)
	return err
}
