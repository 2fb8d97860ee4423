// Package table holds the in-memory representation of report sheets.
//
// A Table is an ordered set of uniquely named columns whose values are numeric,
// text or missing. A Set maps the sheet names of one workbook to their tables.
//
// Category enumerates the report sections present in every measurement workbook
// and maps each one to its sheet name and aggregation rules through a single
// static table, so callers never hard-code sheet names:
//
//	spec := table.ParametersDaily.Spec()
//	daily, ok := set.Sheet(spec.Sheet)
package table
