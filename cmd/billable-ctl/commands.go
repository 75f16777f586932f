package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"billable/internal/core"
	"billable/internal/export"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func monthCmd(a *app) *cobra.Command {
	var peek bool
	cmd := &cobra.Command{
		Use:   "month YYYY-MM",
		Short: "Print a month ledger as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ym, err := core.ParseYearMonth(args[0])
			if err != nil {
				return err
			}
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			load := rt.Ledger.LoadMonth
			if peek {
				load = rt.Ledger.PeekMonth
			}
			l, err := load(cmd.Context(), ym)
			if err != nil {
				return fmt.Errorf("load %s: %w", ym, err)
			}
			return writeJSON(cmd.OutOrStdout(), l)
		},
	}
	cmd.Flags().BoolVar(&peek, "peek", false, "do not create or catch up the shard on disk")
	return cmd
}

func rateCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "rate PROJECT_ID",
		Short: "Print the hourly rate of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := core.DateOf(time.Now())
			if date != "" {
				var err error
				if day, err = core.ParseDate(date); err != nil {
					return err
				}
			}
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			rate, err := rt.Ledger.GetRateForDate(cmd.Context(), args[0], day)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %.2f\n", args[0], day, rate)
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to resolve the rate for, YYYY-MM-DD (default: today)")
	return cmd
}

func sweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Catch every month up with the journal and compact it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.Ledger.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "months=%d rewritten=%d compacted=%d\n", report.Months, report.Rewritten, report.Compacted)
			return err
		},
	}
}

func definitionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "definitions",
		Short: "List recurring definitions, ended ones included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			defs, err := rt.Ledger.LoadRecurringDefinitions(cmd.Context())
			if err != nil {
				return err
			}
			if defs == nil {
				defs = []core.Task{}
			}
			return writeJSON(cmd.OutOrStdout(), defs)
		},
	}
}

type exportOptions struct {
	format string
	output string
}

func (o *exportOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.format, "format", "f", "csv", "csv, json or yaml")
	flagSet.StringVarP(&o.output, "output", "o", "", "write to FILE instead of stdout")
}

func exportCmd(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export YYYY-MM",
		Short: "Export a month with per-task amounts",
		Example: `  # Export March 2024 as CSV
  billable-ctl export 2024-03 --format csv --output march.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ym, err := core.ParseYearMonth(args[0])
			if err != nil {
				return err
			}
			switch opts.format {
			case "csv", "json", "yaml":
			default:
				return fmt.Errorf("%w: format %q, want csv, json or yaml", core.ErrValidation, opts.format)
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			l, err := rt.Ledger.PeekMonth(cmd.Context(), ym)
			if err != nil {
				return fmt.Errorf("load %s: %w", ym, err)
			}
			projects, err := rt.Catalog.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			clients, err := rt.Catalog.ListClients(cmd.Context())
			if err != nil {
				return err
			}
			return writeExport(cmd.OutOrStdout(), opts, l, projects, clients)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func writeExport(out io.Writer, opts exportOptions, l *core.Ledger, projects []core.Project, clients []core.Client) error {
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.output, err)
		}
		defer f.Close()
		out = f
	}

	lookup := core.ProjectIndex(projects)
	names := namesOf(projects, clients)
	switch opts.format {
	case "json":
		return export.ToJSON(out, l, lookup, names, time.Now())
	case "yaml":
		return export.ToYAML(out, l, lookup, names, time.Now())
	default:
		return export.ToCSV(out, l, lookup, names)
	}
}

func namesOf(projects []core.Project, clients []core.Client) export.Names {
	names := export.Names{
		Projects: make(map[string]string, len(projects)),
		Clients:  make(map[string]string, len(clients)),
	}
	for _, p := range projects {
		names.Projects[p.ID] = p.Name
	}
	for _, c := range clients {
		names.Clients[c.ID] = c.Name
	}
	return names
}
