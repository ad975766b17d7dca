// Package audit renders report listings into printable PDF summaries for ward
// offices and the municipal review board.
package audit

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/models"

	"github.com/phpdave11/gofpdf"
)

// Options controls the header of the exported document.
type Options struct {
	Title    string
	Operator string
	Filter   models.ReportFilter
	// FontPath is an optional TrueType font with Devanagari coverage. Without
	// it the core Helvetica font is used and non-ASCII text becomes '?'.
	FontPath    string
	GeneratedAt time.Time
}

// Summary counts reports per status and threat level.
type Summary struct {
	Total    int
	ByStatus map[models.Status]int
	ByThreat map[models.ThreatLevel]int
}

// Summarize counts reports by status and threat level.
func Summarize(reports []models.Report) Summary {
	s := Summary{
		Total:    len(reports),
		ByStatus: make(map[models.Status]int),
		ByThreat: make(map[models.ThreatLevel]int),
	}
	for _, r := range reports {
		s.ByStatus[r.Status]++
		level := r.AIAnalysis.ThreatLevel
		if level == "" {
			level = models.ThreatUnknown
		}
		s.ByThreat[level]++
	}
	return s
}

// WritePDF writes one document listing reports, most severe first.
func WritePDF(w io.Writer, reports []models.Report, dir *config.Directory, opts Options) error {
	if opts.Title == "" {
		opts.Title = "Nagarpalika - Report Audit"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	sorted := append([]models.Report(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].AIAnalysis, sorted[j].AIAnalysis
		if a.ThreatLevel.Tier() != b.ThreatLevel.Tier() {
			return a.ThreatLevel.Tier() > b.ThreatLevel.Tier()
		}
		if a.SeverityScore != b.SeverityScore {
			return a.SeverityScore > b.SeverityScore
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle(opts.Title, false)

	doc := &document{pdf: pdf}
	doc.family, doc.utf8 = loadFont(pdf, opts.FontPath)

	pdf.AddPage()
	pdf.SetFont(doc.family, "B", 16)
	pdf.CellFormat(0, 9, doc.text(opts.Title), "", 1, "L", false, 0, "")

	pdf.SetFont(doc.family, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+opts.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
	if opts.Operator != "" {
		pdf.CellFormat(0, 6, "Operator: "+doc.text(opts.Operator), "", 1, "L", false, 0, "")
	}
	if f := describeFilter(opts.Filter); f != "" {
		pdf.CellFormat(0, 6, "Filter: "+doc.text(f), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	summary := Summarize(sorted)
	doc.section("1. Summary")
	doc.kv("Total reports", fmt.Sprintf("%d", summary.Total))
	for _, st := range []models.Status{models.StatusPending, models.StatusInProgress, models.StatusResolved, models.StatusRejected} {
		doc.kv(string(st), fmt.Sprintf("%d", summary.ByStatus[st]))
	}
	for _, t := range []models.ThreatLevel{models.ThreatCritical, models.ThreatHigh, models.ThreatMedium, models.ThreatLow, models.ThreatUnknown} {
		doc.kv("Threat "+string(t), fmt.Sprintf("%d", summary.ByThreat[t]))
	}
	pdf.Ln(2)

	doc.section("2. Reports")
	if len(sorted) == 0 {
		pdf.SetFont(doc.family, "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(empty)", "", "L", false)
	}
	for i := range sorted {
		doc.report(&sorted[i], dir)
	}

	if pdf.Err() {
		return fmt.Errorf("render pdf: %w", pdf.Error())
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// WriteFile renders the document to path.
func WriteFile(path string, reports []models.Report, dir *config.Directory, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePDF(f, reports, dir, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type document struct {
	pdf    *gofpdf.Fpdf
	family string
	utf8   bool
}

func (d *document) section(title string) {
	d.pdf.SetFont(d.family, "B", 12)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	d.pdf.SetDrawColor(200, 200, 200)
	d.pdf.Line(d.pdf.GetX(), d.pdf.GetY(), 196, d.pdf.GetY())
	d.pdf.Ln(2)
}

func (d *document) kv(key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	d.pdf.SetFont(d.family, "B", 10)
	d.pdf.SetTextColor(30, 30, 30)
	d.pdf.CellFormat(40, 5.2, d.text(key)+":", "", 0, "L", false, 0, "")
	d.pdf.SetFont(d.family, "", 10)
	d.pdf.SetTextColor(20, 20, 20)
	d.pdf.MultiCell(0, 5.2, d.text(value), "", "L", false)
}

func (d *document) report(r *models.Report, dir *config.Directory) {
	ward := r.TargetDepartment
	if dep, ok := dir.Lookup(ward); ok {
		ward = dep.Code + " " + dep.Name
	}

	d.pdf.SetFont(d.family, "B", 10)
	red, green, blue := threatColor(r.AIAnalysis.ThreatLevel)
	d.pdf.SetTextColor(red, green, blue)
	d.pdf.MultiCell(0, 5, d.text(fmt.Sprintf("[%s %d/10] %s",
		r.AIAnalysis.ThreatLevel, r.AIAnalysis.SeverityScore, r.Title)), "", "L", false)

	d.pdf.SetFont(d.family, "", 9)
	d.pdf.SetTextColor(40, 40, 40)
	d.pdf.MultiCell(0, 4.5, d.text(fmt.Sprintf("id: %s | status: %s | filed: %s",
		r.ID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))), "", "L", false)
	d.pdf.MultiCell(0, 4.5, d.text("ward: "+orDash(ward)+" | location: "+orDash(r.Location)), "", "L", false)
	if len(r.AIAnalysis.DetectedObjects) > 0 {
		d.pdf.MultiCell(0, 4.5, d.text("detected: "+strings.Join(r.AIAnalysis.DetectedObjects, ", ")), "", "L", false)
	}
	if r.AIAnalysis.FlaggedForReview {
		d.pdf.MultiCell(0, 4.5, "flagged for manual review", "", "L", false)
	}
	d.pdf.Ln(1)
}

// text flattens whitespace and, without a UTF-8 font, replaces non-ASCII runes.
func (d *document) text(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if d.utf8 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

func loadFont(pdf *gofpdf.Fpdf, path string) (string, bool) {
	const family = "unicode"
	path = strings.TrimSpace(path)
	if path == "" {
		return "Helvetica", false
	}
	if _, err := os.Stat(path); err != nil {
		return "Helvetica", false
	}
	pdf.AddUTF8Font(family, "", path)
	if pdf.Err() {
		pdf.ClearError()
		return "Helvetica", false
	}
	pdf.AddUTF8Font(family, "B", path)
	if pdf.Err() {
		pdf.ClearError()
	}
	return family, true
}

func threatColor(level models.ThreatLevel) (int, int, int) {
	switch level {
	case models.ThreatCritical:
		return 180, 0, 0
	case models.ThreatHigh:
		return 200, 90, 0
	case models.ThreatMedium:
		return 150, 120, 0
	}
	return 20, 20, 20
}

func describeFilter(f models.ReportFilter) string {
	var parts []string
	if f.Department != "" {
		parts = append(parts, "department="+f.Department)
	}
	if f.Status != "" {
		parts = append(parts, "status="+string(f.Status))
	}
	if f.UserID != "" {
		parts = append(parts, "user="+f.UserID)
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
