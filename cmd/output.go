package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-enrichment/internal/model"
	"github.com/sells-group/lead-enrichment/internal/pipeline"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// render writes v as JSON or YAML. For the table format it calls table,
// falling back to JSON when table is nil.
func render(out io.Writer, format string, v any, table func(io.Writer)) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "render yaml")
		}
		return enc.Close()
	case formatTable:
		if table != nil {
			table(out)
			return nil
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "render json")
	}
	return nil
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tLOCATION\tSTATUS\tDOMAIN\tSCORE")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t------\t------\t-----")

	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			truncate(l.Company, 30),
			location(l.City, l.State),
			l.EnrichmentStatus,
			orDash(l.DomainValue()),
			formatScore(l.MatchScore),
		)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of pipeline runs to w.
func formatRunsList(out io.Writer, runs []model.RunResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOUTCOME\tDOMAIN\tSCORE\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-----\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.RunID),
			r.Outcome,
			orDash(r.Domain),
			formatScore(r.MatchScore),
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Duration.Round(time.Millisecond),
		)
	}
	_ = w.Flush()
}

// formatRunResult writes the notification and per-step outcome of a run.
func formatRunResult(out io.Writer, r *model.RunResult) {
	_, _ = fmt.Fprintf(out, "%s: %s\n\n", r.Notification.Title, r.Notification.Description)
	formatSteps(out, r.Steps)
}

func formatSteps(out io.Writer, steps []model.StepResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tSTATUS\tDURATION\tERROR")
	for _, s := range steps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", s.Name, s.Status, s.Duration, s.Error)
	}
	_ = w.Flush()
}

// formatDomainResult writes the outcome of a single-source domain search.
func formatDomainResult(out io.Writer, r *pipeline.DomainResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", r.Source)
	_, _ = fmt.Fprintf(w, "Domain:\t%s\n", orDash(r.Domain))
	if r.SourceURL != "" {
		_, _ = fmt.Fprintf(w, "Source URL:\t%s\n", r.SourceURL)
	}
	switch {
	case r.Validation != nil:
		_, _ = fmt.Fprintf(w, "Valid:\t%t\n", r.Validation.IsValidDomain)
		_, _ = fmt.Fprintf(w, "Parked:\t%t\n", r.Validation.IsParked)
		_, _ = fmt.Fprintf(w, "Reason:\t%s\n", r.Validation.Reason)
	case r.ValidationError != "":
		_, _ = fmt.Fprintf(w, "Validation error:\t%s\n", r.ValidationError)
	}
	_ = w.Flush()
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *s)
}

func location(city, state string) string {
	switch {
	case city == "":
		return orDash(state)
	case state == "":
		return city
	}
	return city + ", " + state
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
