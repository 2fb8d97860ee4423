// Package files discovers measurement report workbooks on the local file
// system for the offline overview command.
//
//	found, err := files.NewDiscovery("").FindReports("reports/harbour")
//	ids := files.Paths(found)
package files
