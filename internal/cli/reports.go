package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nagarpalika/backend/internal/models"

	"github.com/spf13/cobra"
)

func filterFlags(cmd *cobra.Command, f *models.ReportFilter, status *string) {
	cmd.Flags().StringVar(&f.Department, "department", "", "only reports for this department code")
	cmd.Flags().StringVar(status, "status", "", "only reports in this status (pending, in-progress, resolved, rejected)")
	cmd.Flags().StringVar(&f.UserID, "user", "", "only reports filed by this user id")
}

func buildFilter(f models.ReportFilter, status string) (models.ReportFilter, error) {
	if status != "" {
		f.Status = models.Status(status)
		if !f.Status.Valid() {
			return f, models.NewValidationError("status", fmt.Sprintf("%q is not a valid status", status))
		}
	}
	return f, nil
}

func newListCmd(r *runner) *cobra.Command {
	var (
		filter models.ReportFilter
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		Long: `List reports, newest first.

Example:
  nagarpalika-admin list
  nagarpalika-admin list --department KTM-W01 --status pending`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := buildFilter(filter, status)
			if err != nil {
				return err
			}
			app, err := r.get()
			if err != nil {
				return err
			}
			reports, err := app.Reports.ListReports(cmd.Context(), f)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTHREAT\tSEVERITY\tDEPARTMENT\tCREATED\tTITLE")
			for _, rep := range reports {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					rep.ID, rep.Status, rep.AIAnalysis.ThreatLevel, rep.AIAnalysis.SeverityScore,
					dash(rep.TargetDepartment), rep.CreatedAt.Format("2006-01-02 15:04"), rep.Title)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d report(s)\n", len(reports))
			return nil
		},
	}
	filterFlags(cmd, &filter, &status)
	return cmd
}

func newShowCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Print one report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.get()
			if err != nil {
				return err
			}
			report, err := app.Reports.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func newSetStatusCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <report-id> <status>",
		Short: "Move a report to a new status",
		Long: `Move a report to a new status. Reports only move forward:
pending -> in-progress -> resolved | rejected.

Example:
  nagarpalika-admin set-status 6f1c... resolved`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.get()
			if err != nil {
				return err
			}
			report, err := app.Reports.UpdateStatus(cmd.Context(), args[0], models.Status(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %s is now %s\n", report.ID, report.Status)
			return nil
		},
	}
}

func newReclassifyCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify <report-id>",
		Short: "Run classification again for a report",
		Long: `Run classification again for a report and overwrite its stored analysis.
Use it for reports left Unknown after a classifier outage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.get()
			if err != nil {
				return err
			}
			report, err := app.Reports.Reclassify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %s classified %s (severity %d/10)\n",
				report.ID, report.AIAnalysis.ThreatLevel, report.AIAnalysis.SeverityScore)
			return nil
		},
	}
}

func newDepartmentsCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "departments",
		Short: "List the jurisdiction codes reports can be routed to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.get()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tCITY\tNAME")
			for _, dep := range app.Directory.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", dep.Code, dep.City, dep.Name)
			}
			return w.Flush()
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
