package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/models"
)

func newFaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fase",
		Short: "Document lifecycle commands",
	}

	cmd.AddCommand(newFaseGeneratedCmd())
	cmd.AddCommand(newFaseSignCmd())
	cmd.AddCommand(newFaseUnsignCmd())
	cmd.AddCommand(newFaseProgressCmd())
	cmd.AddCommand(newFaseLogCmd())
	cmd.AddCommand(newFasePhasesCmd())
	return cmd
}

// withTracker opens the store, runs fn against a tracker and then posts the
// phase events fn produced to the configured chat channels.
func withTracker(cmd *cobra.Command, configPath string, fn func(t *fases.Tracker) error) error {
	cfg, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	var events []fases.Event
	tracker := fases.New(store, fases.Options{
		Hook: func(ev fases.Event) { events = append(events, ev) },
	})
	if err := fn(tracker); err != nil {
		return err
	}
	notifyEvents(cmd.Context(), cfg, events)
	return nil
}

func newFaseGeneratedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "generated <obra> <category>",
		Short: "Record that a phase document was generated today",
		Long:  "Records today's date as the generation date of the phase the document category belongs to. Run `obras fase phases` for the category list.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, configPath, func(t *fases.Tracker) error {
				p, ok, err := t.MarkGenerated(args[0], args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "Unknown document category %q; nothing recorded.\n", args[1])
					return nil
				}
				fmt.Fprintf(out, "Generated: %s\n", p.Name())
				return nil
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newFaseSignCmd() *cobra.Command {
	var (
		configPath string
		date       string
	)

	cmd := &cobra.Command{
		Use:   "sign <obra> <phase>",
		Short: "Record the signature date of a phase",
		Long:  "Records the signature date of a phase. The phase may be given by id, name or number (1-11).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := fases.ParsePhase(args[1])
			if err != nil {
				return err
			}
			d := time.Now()
			if date != "" {
				d, err = time.Parse(models.DateLayout, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}
			return withTracker(cmd, configPath, func(t *fases.Tracker) error {
				if err := t.MarkSigned(args[0], p, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed: %s (%s)\n", p.Name(), d.Format(models.DateLayout))
				return nil
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&date, "date", "", "signature date (YYYY-MM-DD, default today)")
	return cmd
}

func newFaseUnsignCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "unsign <obra> <phase>",
		Short: "Clear the signature date of a phase",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := fases.ParsePhase(args[1])
			if err != nil {
				return err
			}
			return withTracker(cmd, configPath, func(t *fases.Tracker) error {
				if err := t.UnmarkSigned(args[0], p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unsigned: %s\n", p.Name())
				return nil
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newFaseProgressCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "progress <obra>",
		Short: "Show the phase progress of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaseProgress(cmd, configPath, args[0])
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func runFaseProgress(cmd *cobra.Command, configPath, id string) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	t := fases.New(store, fases.Options{})
	pr, err := t.Progress(id)
	if err != nil {
		return err
	}
	o, err := store.Read(pr.Obra)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Obra: %s\n", pr.Obra)
	fmt.Fprintf(out, "Generated: %d/%d  Signed: %d/%d\n", pr.Generated, pr.Total, pr.Signed, pr.Total)
	if pr.NextPending != nil {
		fmt.Fprintf(out, "Next pending: %s\n", pr.NextPending.Name())
	} else {
		fmt.Fprintln(out, "Next pending: none")
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFASE\tGENERADO\tFIRMADO")
	for _, p := range fases.All() {
		e := o.FasesDocumentos[p.ID()]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", int(p)+1, p.Name(), datePtr(e.Generado), datePtr(e.Firmado))
	}
	w.Flush()
	return nil
}

func datePtr(s *string) string {
	if s == nil {
		return "-"
	}
	return dash(*s)
}

func newFaseLogCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "log <obra>",
		Short: "Show the activity log of a contract, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaseLog(cmd, configPath, args[0], limit)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to show (0 = all)")
	return cmd
}

func runFaseLog(cmd *cobra.Command, configPath, id string, limit int) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	seq, err := fases.New(store, fases.Options{}).ActivityLog(id, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	n := 0
	for a := range seq {
		if n == 0 {
			fmt.Fprintln(w, "FECHA\tEVENTO\tFASE")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Date, a.Kind, a.Phase.Name())
		n++
	}
	w.Flush()
	if n == 0 {
		fmt.Fprintln(out, "No activity recorded.")
	}
	return nil
}

func newFasePhasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "List the phases and their document categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tID\tFASE\tCATEGORIAS")
			for _, p := range fases.All() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", int(p)+1, p.ID(), p.Name(), dash(strings.Join(fases.CategoriesFor(p), ", ")))
			}
			return w.Flush()
		},
	}
}

