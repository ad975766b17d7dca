package cli

import (
	"fmt"
	"time"

	"nagarpalika/backend/internal/api/handler"
	"nagarpalika/backend/internal/audit"
	"nagarpalika/backend/internal/models"

	"github.com/spf13/cobra"
)

func newExportPDFCmd(r *runner) *cobra.Command {
	var (
		filter   models.ReportFilter
		status   string
		out      string
		operator string
		font     string
	)
	cmd := &cobra.Command{
		Use:   "export-pdf",
		Short: "Write an audit PDF of reports, most severe first",
		Long: `Write an audit PDF of reports, most severe first.

Nepali text needs a TrueType font with Devanagari glyphs (--font); without one
non-ASCII characters are replaced with '?'.

Example:
  nagarpalika-admin export-pdf --out ward1.pdf --department KTM-W01
  nagarpalika-admin export-pdf --status pending --font /usr/share/fonts/truetype/noto/NotoSansDevanagari-Regular.ttf`,
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

			if out == "" {
				out = fmt.Sprintf("reports_%s.pdf", time.Now().Format("20060102_150405"))
			}
			err = audit.WriteFile(out, reports, app.Directory, audit.Options{
				Operator: operator,
				Filter:   f,
				FontPath: font,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d report(s) to %s\n", len(reports), out)
			return nil
		},
	}
	filterFlags(cmd, &filter, &status)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default reports_<timestamp>.pdf)")
	cmd.Flags().StringVar(&operator, "operator", "", "name printed in the document header")
	cmd.Flags().StringVar(&font, "font", "", "TrueType font for non-ASCII text")
	return cmd
}

func newTokenCmd(r *runner) *cobra.Command {
	var (
		userID     string
		role       string
		department string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for testing or service accounts",
		Long: `Issue a bearer token signed with JWT_SECRET.

Example:
  nagarpalika-admin token --user officer-7 --role authority --department KTM-W01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := models.Identity{UserID: userID, Role: models.Role(role), DepartmentCode: department}
			if !id.HasRole(models.RoleCitizen, models.RoleAuthority, models.RoleAdmin) {
				return models.NewValidationError("role", fmt.Sprintf("%q is not a known role", role))
			}
			if userID == "" {
				return models.NewValidationError("user", "is required")
			}
			app, err := r.get()
			if err != nil {
				return err
			}
			token, err := handler.NewAuth(app.Config.JWTSecret, false).SignToken(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject (user id) of the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleCitizen), "citizen, authority or admin")
	cmd.Flags().StringVar(&department, "department", "", "department code for authority tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
