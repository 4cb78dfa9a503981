package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/xuri/excelize/v2"

	"licensebridge/internal/license"
	"licensebridge/pkg/contracts/domain"
)

// Sheet names in exported workbooks
const (
	SheetLicenses = "Licenses"
	SheetStatus   = "Status"
)

var licenseHeaders = []any{
	"ID", "Key", "Email", "Type", "Valid Until", "Support Until", "Max Release", "Days Left",
}

// WriteLicensesXLSX writes licenses and status as a workbook to w.
// A nil status produces a Status sheet describing the default community edition.
func WriteLicensesXLSX(w io.Writer, licenses []domain.LicenseKey, status *domain.LicenseStatus, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetLicenses); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetStatus); err != nil {
		return fmt.Errorf("create status sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeLicenses(f, header, licenses, now); err != nil {
		return err
	}
	if status == nil {
		status = domain.DefaultStatus()
	}
	if err := writeStatus(f, header, status, now); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteLicensesFile writes the workbook to path atomically, creating parent directories
func WriteLicensesFile(path string, licenses []domain.LicenseKey, status *domain.LicenseStatus, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(WriteLicensesXLSX(pw, licenses, status, now))
	}()

	if err := atomic.WriteFile(path, pr); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeLicenses(f *excelize.File, header int, licenses []domain.LicenseKey, now time.Time) error {
	if err := f.SetSheetRow(SheetLicenses, "A1", &licenseHeaders); err != nil {
		return fmt.Errorf("write license header: %w", err)
	}
	if err := f.SetCellStyle(SheetLicenses, "A1", "H1", header); err != nil {
		return fmt.Errorf("style license header: %w", err)
	}

	for i, l := range licenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			l.ID,
			license.MaskLicenseKey(l.Key),
			l.Email,
			l.LicenseType,
			formatDate(l.ValidUntil),
			formatDate(l.SupportUntil),
			formatRelease(l.MaxAllowedAppRelease),
			daysLeft(l.ValidUntil, now),
		}
		if err := f.SetSheetRow(SheetLicenses, cell, &row); err != nil {
			return fmt.Errorf("write license %d: %w", l.ID, err)
		}
	}

	return f.SetColWidth(SheetLicenses, "B", "G", 18)
}

func writeStatus(f *excelize.File, header int, status *domain.LicenseStatus, now time.Time) error {
	rows := [][]any{
		{"Field", "Value"},
		{"Edition", status.Edition},
		{"Condition", formatConditions(status.Condition)},
		{"Resolved At", formatTimestamp(status.ResolvedAt)},
		{"Exported At", formatTimestamp(now)},
	}
	if status.License != nil {
		rows = append(rows,
			[]any{"License ID", status.License.ID},
			[]any{"License Key", license.MaskLicenseKey(status.License.Key)},
			[]any{"Valid Until", formatDate(status.License.ValidUntil)},
		)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetStatus, cell, &row); err != nil {
			return fmt.Errorf("write status row: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetStatus, "A1", "B1", header); err != nil {
		return fmt.Errorf("style status header: %w", err)
	}
	return f.SetColWidth(SheetStatus, "A", "B", 24)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
