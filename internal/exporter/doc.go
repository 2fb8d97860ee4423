// Package exporter serializes tables for distribution.
//
// WriteTable and WriteWorkbook produce xlsx workbooks with excelize stream
// writers, one sheet per table. CSVWriter writes a single table as CSV with an
// optional UTF-8 BOM so spreadsheet tools detect the encoding.
//
// Example usage:
//
//	err := exporter.WriteWorkbook(w, []exporter.NamedTable{
//		{Name: "Measurement points", Table: points},
//		{Name: "Weekly averages", Table: weekly},
//	})
package exporter
