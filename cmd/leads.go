package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NonStopMan/vamo-heatos/internal/export"
	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and repair stored leads",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("output")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if format != formatTable {
			return writeStructured(cmd.OutOrStdout(), format, leads)
		}
		if len(leads) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No leads found.")
			return nil
		}
		formatLeadsList(cmd.OutOrStdout(), leads)
		return nil
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show a lead including its stored payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("output")
		if format == formatTable {
			format = formatJSON
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		return writeStructured(cmd.OutOrStdout(), format, lead)
	},
}

// -- leads requeue --

var leadsRequeueCmd = &cobra.Command{
	Use:   "requeue <lead-id>...",
	Short: "Reset failed leads to pending with zero retries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, id := range args {
			if err := st.Requeue(ctx, id); err != nil {
				return eris.Wrapf(err, "leads requeue %s", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)
		}
		return nil
	},
}

// -- leads stats --

var leadsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count leads by CRM status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("output")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return eris.Wrap(err, "leads stats")
		}

		if format != formatTable {
			return writeStructured(cmd.OutOrStdout(), format, counts)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tCOUNT")
		for _, s := range []model.CRMStatus{model.CRMStatusPending, model.CRMStatusSynced, model.CRMStatusFailed} {
			fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
		}
		return w.Flush()
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := export.Collect(ctx, st, filter)
		if err != nil {
			return err
		}

		if out == "-" {
			return export.WriteXLSX(cmd.OutOrStdout(), leads)
		}
		if err := export.SaveXLSX(out, leads); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d leads to %s\n", len(leads), out)
		return nil
	},
}

func leadFilterFromFlags(cmd *cobra.Command) (store.LeadFilter, error) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	filter := store.LeadFilter{Status: model.CRMStatus(status), Limit: limit, Offset: offset}
	if status != "" && !filter.Status.Valid() {
		return filter, eris.Errorf("invalid status %q (want pending, synced or failed)", status)
	}
	return filter, nil
}

func formatLeadsList(w io.Writer, leads []model.Lead) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXTERNAL ID\tSTATUS\tRETRIES\tCREATED\tLAST ERROR")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ID,
			orDash(l.ExternalID),
			l.CRMStatus,
			l.CRMRetries,
			l.CreatedAt.Format(time.RFC3339),
			truncate(orDash(l.CRMLastError), 60),
		)
	}
	_ = tw.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().String("status", "", "filter by CRM status (pending, synced, failed)")
		c.Flags().Int("offset", 0, "number of leads to skip")
	}
	leadsListCmd.Flags().Int("limit", 50, "maximum number of leads")
	leadsExportCmd.Flags().Int("limit", 0, "maximum number of leads (0 for all)")
	leadsExportCmd.Flags().String("out", "leads.xlsx", "output file, or - for stdout")

	for _, c := range []*cobra.Command{leadsListCmd, leadsShowCmd, leadsStatsCmd} {
		c.Flags().StringP("output", "o", formatTable, "output format: table, json or yaml")
	}

	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsRequeueCmd, leadsStatsCmd, leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
