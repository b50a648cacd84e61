package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/thalesfsp/ho"
	"github.com/thalesfsp/ho/store"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <name>",
	Short: "Show a stored strategy snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored strategy snapshots",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the raw snapshot as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, logger, st, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer st.Close()

	rec, err := loadRecord(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(rec)
	}

	phases, err := cfg.BuildPhases()
	if err != nil {
		return err
	}

	strategy, err := ho.RestoreStrategy(phases, rec.State)
	if err != nil {
		return fmt.Errorf("snapshot %q does not match the configuration: %w", rec.Name, err)
	}

	fmt.Fprintf(out, "strategy %q, saved %s (%s)\n\n", rec.Name, humanize.Time(rec.SavedAt), rec.ID)

	printStats(out, strategy.Stats())
	fmt.Fprintln(out)
	printTrials(out, cfg.Space(), strategy.Trials(), rec.Data)

	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	_, logger, st, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer st.Close()

	names, err := st.List(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPHASE\tTRIALS\tOBSERVATIONS\tSAVED")

	for _, name := range names {
		rec, err := st.LoadRecord(cmd.Context(), name)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%v\n", name, err)

			continue
		}

		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\t%s\n",
			name,
			rec.State.CurrentPhase, len(rec.State.Generators),
			humanize.Comma(int64(len(rec.State.Trials))),
			humanize.Comma(int64(len(rec.Data))),
			humanize.Time(rec.SavedAt),
		)
	}

	return w.Flush()
}

func loadRecord(ctx context.Context, st *store.Store, name string) (store.Record, error) {
	rec, err := st.LoadRecord(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, fmt.Errorf("no snapshot named %q, start one with `ho run --name %s`", name, name)
	}

	return rec, err
}

func printStats(out io.Writer, stats []ho.PhaseStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tPHASE\tGENERATOR\tQUOTA\tMIN OBSERVED\tMAX CONCURRENT\tPRODUCED\tIN FLIGHT\tOBSERVED")

	for _, s := range stats {
		marker := ""
		if s.Current {
			marker = "*"
		}

		quota := "unbounded"
		if s.TrialQuota != ho.Unbounded {
			quota = fmt.Sprint(s.TrialQuota)
		}

		maxConcurrent := "unbounded"
		if s.MaxConcurrent != ho.Unbounded {
			maxConcurrent = fmt.Sprint(s.MaxConcurrent)
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\t%d\t%d\t%d\n",
			marker, s.Index, s.GeneratorID, quota, s.MinObserved, maxConcurrent, s.Produced, s.NonTerminal, s.Observed)
	}

	_ = w.Flush()
}

func printTrials(out io.Writer, space ho.SearchSpace, trials []ho.TrialRecord, data ho.Data) {
	values := make(map[ho.TrialID]ho.Observation, len(data))
	for _, o := range data {
		values[o.TrialID] = o
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tPHASE\tSTATUS\tVALUE\tPOINT")

	for _, t := range trials {
		value := "-"
		if o, ok := values[t.ID]; ok {
			value = fmt.Sprintf("%g", o.Mean)
		}

		points := make([]string, len(t.Points))
		for i, p := range t.Points {
			points[i] = formatPoint(space, p)
		}

		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", t.ID, t.Phase, t.Status, value, strings.Join(points, " "))
	}

	_ = w.Flush()
}

// formatPoint renders p as name=value pairs.
func formatPoint(space ho.SearchSpace, p ho.Point) string {
	parts := make([]string, len(p))

	for i, v := range p {
		name := fmt.Sprintf("x%d", i)
		if i < len(space) && space[i].Name != "" {
			name = space[i].Name
		}

		if i < len(space) && space[i].Integer {
			parts[i] = fmt.Sprintf("%s=%d", name, int64(v))
		} else {
			parts[i] = fmt.Sprintf("%s=%.4g", name, v)
		}
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
