package sandbox

import (
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// OperationRecord is one immutable entry in a workspace's operation history.
// Records are appended exactly once per successful mutating operation, in
// chronological order, and are never edited or removed for the lifetime of the
// session. View operations are not recorded since they do not mutate.
type OperationRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Command   string         `json:"command"`
	Path      string         `json:"path"`
	Details   map[string]any `json:"details"`

	// OldContent and NewContent hold the full file content before and after
	// the mutation. Nil where capturing content is not meaningful for the
	// command, e.g. OldContent for create.
	OldContent *string `json:"old_content"`
	NewContent *string `json:"new_content"`
}

// contentDiff renders the change between two file contents as patch text for
// the history details payload. The full before/after contents are recorded
// alongside it, so the diff is purely a convenience for consumers.
func contentDiff(oldContent, newContent string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, false)
	patches := dmp.PatchMake(oldContent, diffs)
	return dmp.PatchToText(patches)
}
