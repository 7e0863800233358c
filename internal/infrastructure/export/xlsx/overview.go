package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

const sheetName = "Submissions"

var overviewHeader = []any{
	"Slug", "Status", "Submitter", "Email", "Organization", "Department",
	"Documents", "Created", "Submitted", "Forwarded to", "Expires",
}

// OverviewWriter renders the admin submission overview as an XLSX workbook.
type OverviewWriter struct{}

func NewOverviewWriter() OverviewWriter {
	return OverviewWriter{}
}

func (OverviewWriter) WriteSubmissionOverview(w io.Writer, rows []domain.SubmissionDetail, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &overviewHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := []any{
			row.Slug,
			string(row.Status),
			row.SubmitterName,
			deref(row.SubmitterEmail),
			row.Organization,
			deref(row.OrganizationDepartment),
			len(row.Documents),
			formatTime(&row.CreatedAt),
			formatTime(row.SubmittedAt),
			deref(row.ForwardedTo),
			formatTime(&row.ExpiresAt),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Submission overview",
		Created: generatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
