// Package exporter writes license snapshots to Excel workbooks.
//
// A workbook has two sheets: "Licenses" with one row per stored key (keys are
// masked) and "Status" with the resolved edition at export time.
//
//	f, _ := os.Create("licenses.xlsx")
//	err := exporter.WriteLicensesXLSX(f, licenses, status, time.Now())
package exporter
