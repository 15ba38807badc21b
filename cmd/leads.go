package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		company, _ := cmd.Flags().GetString("company")
		missing, _ := cmd.Flags().GetBool("missing-domain")
		limit, _ := cmd.Flags().GetInt("limit")

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status:        model.EnrichmentStatus(status),
			MissingDomain: missing,
			Company:       company,
			Limit:         limit,
		})
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 && outputFormat == formatTable {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		return render(os.Stdout, outputFormat, leads, func(w io.Writer) { formatLeadsList(w, leads) })
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show full details of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		return render(os.Stdout, outputFormat, lead, nil)
	},
}

var leadsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead := &model.Lead{}
		lead.Company, _ = cmd.Flags().GetString("company")
		lead.FullName, _ = cmd.Flags().GetString("name")
		lead.City, _ = cmd.Flags().GetString("city")
		lead.State, _ = cmd.Flags().GetString("state")
		lead.Zipcode, _ = cmd.Flags().GetString("zip")
		if email, _ := cmd.Flags().GetString("email"); email != "" {
			lead.Email = &email
		}
		if sector, _ := cmd.Flags().GetString("mics-sector"); sector != "" {
			lead.MicsSector = &sector
		}

		created, err := st.CreateLead(ctx, lead)
		if err != nil {
			return eris.Wrap(err, "leads add")
		}
		return render(os.Stdout, outputFormat, created, func(w io.Writer) {
			_, _ = fmt.Fprintln(w, created.ID)
		})
	},
}

func init() {
	leadsCmd.Flags().String("status", "", "filter by enrichment status (pending, domain_validated, completed, ...)")
	leadsCmd.Flags().String("company", "", "filter by company name")
	leadsCmd.Flags().Bool("missing-domain", false, "only leads without a domain")
	leadsCmd.Flags().Int("limit", 50, "max number of leads to display")

	leadsAddCmd.Flags().String("company", "", "company name")
	leadsAddCmd.Flags().String("name", "", "contact full name")
	leadsAddCmd.Flags().String("email", "", "contact email")
	leadsAddCmd.Flags().String("city", "", "city")
	leadsAddCmd.Flags().String("state", "", "state")
	leadsAddCmd.Flags().String("zip", "", "zipcode")
	leadsAddCmd.Flags().String("mics-sector", "", "MICS sector")
	_ = leadsAddCmd.MarkFlagRequired("company")

	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsAddCmd)
	rootCmd.AddCommand(leadsCmd)
}
