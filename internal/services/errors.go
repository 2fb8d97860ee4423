package services

import "errors"

// Download request errors
var (
	ErrNoFilesSelected = errors.New("no files selected")
	ErrTooManyFiles    = errors.New("too many files selected")
	ErrFolderRequired  = errors.New("folder_id is required for compiled files")
	ErrUnknownOption   = errors.New("unknown download option")
	ErrNoParentFolder  = errors.New("parent folder is not configured")
)
