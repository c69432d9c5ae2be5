package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NonStopMan/vamo-heatos/internal/crm"
	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "Diagnose the Salesforce integration",
}

// connectSalesforce authenticates with the configured integration user and
// returns a metadata client.
func connectSalesforce(cmd *cobra.Command) (salesforce.Client, error) {
	if err := cfg.Validate("crm"); err != nil {
		return nil, err
	}
	return salesforce.Connect(cmd.Context(), cfg.Salesforce.Authenticator(),
		salesforce.WithRateLimit(cfg.Salesforce.RateLimit),
	)
}

// -- crm check --

var crmCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify auth and that every mapped Lead field can be created",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := connectSalesforce(cmd)
		if err != nil {
			return err
		}

		desc, err := client.DescribeSObject(cmd.Context(), "Lead")
		if err != nil {
			return err
		}
		if !desc.Createable {
			return eris.New("crm check: integration user cannot create Lead records")
		}

		missing, notCreateable := salesforce.MissingFields(desc, crm.LeadFields)
		formatFieldCheck(cmd.OutOrStdout(), desc, crm.LeadFields)

		if len(missing) > 0 || len(notCreateable) > 0 {
			return eris.Errorf("crm check: missing fields [%s], not createable [%s]",
				strings.Join(missing, ", "), strings.Join(notCreateable, ", "))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK: all mapped Lead fields are createable.")
		return nil
	},
}

// -- crm find --

var crmFindCmd = &cobra.Command{
	Use:   "find <email>",
	Short: "Find Salesforce Leads by email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("output")

		client, err := connectSalesforce(cmd)
		if err != nil {
			return err
		}

		leads, err := salesforce.FindLeadsByEmail(cmd.Context(), client, args[0], limit)
		if err != nil {
			return err
		}

		if format != formatTable {
			return writeStructured(cmd.OutOrStdout(), format, leads)
		}
		if len(leads) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No Salesforce leads found.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tSTATUS\tCREATED")
		for _, l := range leads {
			fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n", l.ID, l.FirstName, l.LastName, l.LeadSource, l.Status, l.CreatedDate)
		}
		return tw.Flush()
	},
}

func formatFieldCheck(w io.Writer, desc *salesforce.SObjectDescription, fields []string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tTYPE\tCREATEABLE\tREQUIRED")
	for _, name := range fields {
		f := desc.Field(name)
		if f == nil {
			fmt.Fprintf(tw, "%s\t-\tmissing\t-\n", name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\n", name, f.Type, f.Createable, !f.Nillable)
	}
	_ = tw.Flush()
}

func init() {
	crmFindCmd.Flags().Int("limit", 10, "maximum number of leads")
	crmFindCmd.Flags().StringP("output", "o", formatTable, "output format: table, json or yaml")

	crmCmd.AddCommand(crmCheckCmd, crmFindCmd)
	rootCmd.AddCommand(crmCmd)
}
