// Package dataprocessing turns measurement report workbooks into tables and
// combines many reports into one table per report category.
//
// # Parsing
//
// ParseWorkbook and ParseFile read every sheet of an xlsx workbook with
// excelize. The first row is the header row; cells are numeric only when both
// their raw and displayed text parse as numbers.
//
// # Aggregation
//
// An Aggregator resolves report ids through a TableSource and runs in one of
// two modes:
//
//	Compiled  concatenates the rows of every contributor, columns unioned
//	Overview  distinct identifiers for Metadata, element-wise means for the
//	          averaged categories, rounded to one decimal
//
// A category that cannot be combined fails on its own and is reported in
// AggregateResult.Failures; the other categories are still produced.
//
//	agg := dataprocessing.NewAggregator(dataprocessing.TableSourceFunc(tables.Get), logger, metrics)
//	res, err := agg.Aggregate(ctx, ids, dataprocessing.Overview, table.AllCategories())
package dataprocessing
