// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and a generator
// for measurement report workbooks, so cache, aggregation and packaging tests
// can work from realistic xlsx bytes without touching Drive.
package shared
