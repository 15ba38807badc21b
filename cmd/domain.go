package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrichment/internal/pipeline"
	"github.com/sells-group/lead-enrichment/pkg/functions"
)

// -- find-domain --

var findDomainCmd = &cobra.Command{
	Use:   "find-domain",
	Short: "Search one source for a lead's domain and validate it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		leadID, _ := cmd.Flags().GetString("lead")
		sourceName, _ := cmd.Flags().GetString("source")
		source, ok := functions.ParseDomainSource(strings.ToLower(sourceName))
		if !ok {
			return eris.Errorf("find-domain: unknown source %q (apollo, google, email)", sourceName)
		}

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Store.GetLead(ctx, leadID)
		if err != nil {
			return eris.Wrapf(err, "find-domain: get lead %s", leadID)
		}

		res, err := env.Orchestrator.FindDomain(ctx, lead, source, logObserver())
		if err != nil {
			return err
		}
		return render(os.Stdout, outputFormat, res, func(w io.Writer) { formatDomainResult(w, res) })
	},
}

// -- validate --

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a domain for a lead and persist the verdict",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		leadID, _ := cmd.Flags().GetString("lead")
		domain, _ := cmd.Flags().GetString("domain")
		sourceURL, _ := cmd.Flags().GetString("source-url")

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Store.GetLead(ctx, leadID)
		if err != nil {
			return eris.Wrapf(err, "validate: get lead %s", leadID)
		}
		if domain == "" {
			domain = lead.DomainValue()
		}

		in := pipeline.ValidationInput{
			LeadID:    lead.ID,
			Domain:    domain,
			SourceURL: sourceURL,
			PriorLogs: lead.EnrichmentLogs,
		}
		if cmd.Flags().Changed("confidence") {
			c, _ := cmd.Flags().GetFloat64("confidence")
			in.Confidence = &c
		}

		out := env.Orchestrator.Validator().Validate(ctx, in)
		if out.Err != nil {
			return out.Err
		}
		return render(os.Stdout, outputFormat, out.Data, func(w io.Writer) {
			formatDomainResult(w, &pipeline.DomainResult{Domain: domain, SourceURL: sourceURL, Validation: out.Data, Source: "manual"})
		})
	},
}

// -- evaluate-profile --

var evaluateProfileCmd = &cobra.Command{
	Use:   "evaluate-profile",
	Short: "Check whether a lead's contact LinkedIn profile matches the lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		leadID, _ := cmd.Flags().GetString("lead")

		env, err := initPipeline(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Orchestrator.EvaluateProfile(ctx, leadID)
		if err != nil {
			return err
		}
		return render(os.Stdout, outputFormat, resp, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "Match: %t (confidence %.2f)\n%s\n", resp.IsMatch, resp.Confidence, resp.Reason)
		})
	},
}

func init() {
	findDomainCmd.Flags().String("lead", "", "lead ID")
	findDomainCmd.Flags().String("source", string(functions.SourceGoogle), "domain source (apollo, google, email)")
	_ = findDomainCmd.MarkFlagRequired("lead")

	validateCmd.Flags().String("lead", "", "lead ID")
	validateCmd.Flags().String("domain", "", "domain to validate (default: the lead's current domain)")
	validateCmd.Flags().String("source-url", "", "URL the domain was found at")
	validateCmd.Flags().Float64("confidence", 0, "discovery confidence to persist with the verdict")
	_ = validateCmd.MarkFlagRequired("lead")

	evaluateProfileCmd.Flags().String("lead", "", "lead ID")
	_ = evaluateProfileCmd.MarkFlagRequired("lead")

	rootCmd.AddCommand(findDomainCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(evaluateProfileCmd)
}
