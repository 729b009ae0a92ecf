package types

import "errors"

// Import failure classes. Errors returned by the importer wrap one of these
// together with the underlying cause, so errors.Is matches either.
var (
	// ErrSchemaMutation reports a failed CREATE TABLE, ALTER TABLE or
	// CREATE INDEX during the main pass. The run cannot continue.
	ErrSchemaMutation = errors.New("schema mutation failed")

	// ErrRowMutation reports a failed INSERT, UPDATE or DELETE.
	ErrRowMutation = errors.New("row mutation failed")

	// ErrParse reports malformed input or an unsupported character set.
	ErrParse = errors.New("document parse failed")

	// ErrFinalize reports that the foreign-key retrofit failed. Data from
	// the main pass is committed but has no referential constraints.
	ErrFinalize = errors.New("imported without referential constraints")

	// ErrNoInput is returned when an import is started without any files.
	ErrNoInput = errors.New("no input documents")
)
