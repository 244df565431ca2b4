package directory

import "errors"

// Errors surfaced by directory operations (§7 error taxonomy).
var (
	ErrEntryNotFound     = errors.New("entry not found")
	ErrEntryExists       = errors.New("entry already exists")
	ErrEntryIsFile       = errors.New("entry is a file")
	ErrEntryIsDirectory  = errors.New("entry is a directory")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrAmbiguousEntry    = errors.New("ambiguous entry: multiple concurrent versions")
)
