package sandbox

import "errors"

// Sentinel errors classifying every failure a workspace operation can produce.
// Operations wrap these with path and context via fmt.Errorf("...: %w", ...);
// callers classify with errors.Is.
var (
	// ErrAccessDenied indicates a path that resolves outside the sandbox base
	// directory. The operation is rejected before any I/O.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound indicates a missing file, or a missing backup for undo_edit.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a create targeting an existing path.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAmbiguousMatch indicates a str_replace whose old string occurs zero
	// times or more than once in the file.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrOutOfRange indicates an insert line number outside [0, line count].
	ErrOutOfRange = errors.New("out of range")

	// ErrUnknownCommand indicates a command tag outside the five supported
	// text editor commands.
	ErrUnknownCommand = errors.New("unknown command")
)
