package errors

import (
	"errors"
	"fmt"
)

// Report pipeline sentinel errors, matched with errors.Is
var (
	ErrRemoteFetch      = errors.New("remote fetch failed")
	ErrParse            = errors.New("report parse failed")
	ErrAggregationShape = errors.New("aggregation shape mismatch")
	ErrFileNotFound     = errors.New("remote file not found")
)

// RemoteFetchError is returned when metadata or content cannot be retrieved
// from the remote file store, including timeouts.
type RemoteFetchError struct {
	FileID string
	Op     string
	Err    error
}

// NewRemoteFetchError wraps err as a RemoteFetchError
func NewRemoteFetchError(fileID, op string, err error) *RemoteFetchError {
	return &RemoteFetchError{FileID: fileID, Op: op, Err: err}
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("remote %s for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRemoteFetch) match any RemoteFetchError
func (e *RemoteFetchError) Is(target error) bool {
	return target == ErrRemoteFetch
}

// ParseError is returned when a workbook cannot be read
type ParseError struct {
	FileID string
	Sheet  string
	Err    error
}

// NewParseError wraps err as a ParseError
func NewParseError(fileID, sheet string, err error) *ParseError {
	return &ParseError{FileID: fileID, Sheet: sheet, Err: err}
}

func (e *ParseError) Error() string {
	switch {
	case e.FileID != "" && e.Sheet != "":
		return fmt.Sprintf("parse file %s sheet %q: %v", e.FileID, e.Sheet, e.Err)
	case e.Sheet != "":
		return fmt.Sprintf("parse sheet %q: %v", e.Sheet, e.Err)
	case e.FileID != "":
		return fmt.Sprintf("parse file %s: %v", e.FileID, e.Err)
	default:
		return fmt.Sprintf("parse workbook: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrParse) match any ParseError
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// AggregationShapeError reports a contributing table whose rows or columns do
// not line up with the reference table of a category.
type AggregationShapeError struct {
	Category string
	Source   int
	Reason   string
}

// NewAggregationShapeError builds a shape error. source is the position of the
// offending table among the category's contributors, or -1 for the reference.
func NewAggregationShapeError(category string, source int, format string, args ...any) *AggregationShapeError {
	return &AggregationShapeError{
		Category: category,
		Source:   source,
		Reason:   fmt.Sprintf(format, args...),
	}
}

func (e *AggregationShapeError) Error() string {
	if e.Source < 0 {
		return fmt.Sprintf("%s: reference table: %s", e.Category, e.Reason)
	}
	return fmt.Sprintf("%s: contributor %d: %s", e.Category, e.Source, e.Reason)
}

// Is makes errors.Is(err, ErrAggregationShape) match any AggregationShapeError
func (e *AggregationShapeError) Is(target error) bool {
	return target == ErrAggregationShape
}
