// Package sandbox provides a confined, auditable file editing surface keyed by
// session. A Workspace owns a directory subtree, validates that every path it
// touches stays inside that subtree, snapshots files before mutating them so
// edits can be undone, and appends every mutation to an ordered history log.
package sandbox

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	backupDirName   = ".backups"
	historyFileName = "history.jsonl"
)

// backupNamePattern matches on-disk backup names: <basename>.<unix-nanos>.<seq>.
// The strict shape lets stack rebuilding ignore anything else living in the
// backup directory, such as the history log.
var backupNamePattern = regexp.MustCompile(`^(.+)\.(\d+)\.(\d{6})$`)

// FileInfo describes one regular file in a workspace listing.
type FileInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Workspace is a sandboxed directory subtree for a single session. All file
// I/O goes through the five text editor operations; every resolved path is
// validated against the base directory first.
//
// The mutex guards the in-memory history log and backup stacks so concurrent
// tool calls cannot corrupt process state. File contents themselves are not
// locked: two concurrent edits to the same file interleave at filesystem-call
// granularity, which is acceptable for single-user-per-session use.
type Workspace struct {
	baseDir   string
	backupDir string

	mu      sync.Mutex
	history []OperationRecord
	backups map[string][]string // relative file path -> stack of backup paths (relative to backupDir), oldest first
	seq     uint64
}

// NewWorkspace creates or re-attaches a workspace rooted at baseDir. When the
// directory already exists from a previous process, the operation history and
// per-file backup stacks are rebuilt from disk.
func NewWorkspace(baseDir string) (*Workspace, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	ws := &Workspace{
		baseDir:   abs,
		backupDir: filepath.Join(abs, backupDirName),
		backups:   map[string][]string{},
	}

	if err := os.MkdirAll(ws.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directories: %w", err)
	}
	if err := ws.loadHistory(); err != nil {
		return nil, fmt.Errorf("failed to load workspace history: %w", err)
	}
	if err := ws.rebuildBackupStacks(); err != nil {
		return nil, fmt.Errorf("failed to rebuild backup stacks: %w", err)
	}
	return ws, nil
}

// BaseDir returns the absolute path of the workspace root.
func (ws *Workspace) BaseDir() string {
	return ws.baseDir
}

// resolve validates a request path and maps it to an absolute path inside the
// workspace. A single leading separator is tolerated, so "/notes.txt" and
// "notes.txt" name the same file. Paths that escape the base directory after
// normalization fail with ErrAccessDenied before any I/O happens.
func (ws *Workspace) resolve(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	abs := filepath.Clean(filepath.Join(ws.baseDir, trimmed))
	if abs != ws.baseDir && !strings.HasPrefix(abs, ws.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the sandbox: %w", path, ErrAccessDenied)
	}
	return abs, nil
}

func (ws *Workspace) relPath(abs string) string {
	rel, err := filepath.Rel(ws.baseDir, abs)
	if err != nil {
		return abs
	}
	return rel
}

// View returns a directory listing, or file content with 1-based line numbers.
// viewRange selects an inclusive 1-based [start, end] line range; end == -1
// means "to end of file". View does not mutate and is never recorded in the
// history.
func (ws *Workspace) View(path string, viewRange []int) (string, error) {
	abs, err := ws.resolve(path)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		entries, err := os.ReadDir(abs)
		if err != nil {
			return "", fmt.Errorf("failed to list directory %s: %w", path, err)
		}
		if len(entries) == 0 {
			return "(empty directory)", nil
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		return strings.Join(names, "\n"), nil
	}

	content, err := ws.readFile(abs, path)
	if err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	start, end := 1, len(lines)
	if len(viewRange) >= 2 {
		start, end = viewRange[0], viewRange[1]
		if end == -1 || end > len(lines) {
			end = len(lines)
		}
		if start < 1 {
			start = 1
		}
	}
	// A start past the end of the file selects nothing
	if start > end {
		return "", nil
	}

	numbered := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		numbered = append(numbered, fmt.Sprintf("%d: %s", i, lines[i-1]))
	}
	return strings.Join(numbered, "\n"), nil
}

// Create writes a new file with the given content, creating parent directories
// as needed. Fails if the path already exists.
func (ws *Workspace) Create(path string, fileText string) error {
	abs, err := ws.resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(abs); err == nil {
		return fmt.Errorf("file already exists: %s: %w", path, ErrAlreadyExists)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check file %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(abs, []byte(fileText), 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	ws.appendRecord(OperationRecord{
		Timestamp:  time.Now(),
		Command:    "create",
		Path:       path,
		Details:    map[string]any{"size": len(fileText)},
		NewContent: &fileText,
	})
	return nil
}

// StrReplace replaces exactly one occurrence of oldStr with newStr. The
// current content is backed up first, so the edit can be undone. Zero
// occurrences or more than one fail with ErrAmbiguousMatch and leave the file
// untouched.
func (ws *Workspace) StrReplace(path string, oldStr, newStr string) error {
	abs, err := ws.resolve(path)
	if err != nil {
		return err
	}

	content, err := ws.readFile(abs, path)
	if err != nil {
		return err
	}

	switch count := strings.Count(content, oldStr); {
	case count == 0:
		return fmt.Errorf("no match found for replacement text: %w", ErrAmbiguousMatch)
	case count > 1:
		return fmt.Errorf("found %d matches for replacement text, provide more context to identify a unique occurrence: %w", count, ErrAmbiguousMatch)
	}

	rel := ws.relPath(abs)
	backupRel, err := ws.backupFile(rel, content)
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}

	newContent := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(abs, []byte(newContent), 0o644); err != nil {
		ws.discardBackup(rel, backupRel)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	ws.appendRecord(OperationRecord{
		Timestamp: time.Now(),
		Command:   "str_replace",
		Path:      path,
		Details: map[string]any{
			"old_str": oldStr,
			"new_str": newStr,
			"diff":    contentDiff(content, newContent),
		},
		OldContent: &content,
		NewContent: &newContent,
	})
	return nil
}

// Insert splices a new line into the file. insertLine is 0-based in the sense
// of "insert after this many existing lines": 0 makes the text the new first
// line, and a value equal to the current line count appends a new last line
// even when the file does not end with a newline.
func (ws *Workspace) Insert(path string, insertLine int, text string) error {
	abs, err := ws.resolve(path)
	if err != nil {
		return err
	}

	content, err := ws.readFile(abs, path)
	if err != nil {
		return err
	}

	lines := splitKeepingNewlines(content)
	if insertLine < 0 || insertLine > len(lines) {
		return fmt.Errorf("line %d out of range (file has %d lines): %w", insertLine, len(lines), ErrOutOfRange)
	}

	// Appending after a last line that has no trailing newline would glue the
	// inserted text onto it; patch a newline in front so the insertion becomes
	// a genuinely new last line.
	inserted := text
	if insertLine == len(lines) && len(lines) > 0 && !strings.HasSuffix(lines[len(lines)-1], "\n") {
		inserted = "\n" + inserted
	}

	rel := ws.relPath(abs)
	backupRel, err := ws.backupFile(rel, content)
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}

	newLines := make([]string, 0, len(lines)+1)
	newLines = append(newLines, lines[:insertLine]...)
	newLines = append(newLines, inserted+"\n")
	newLines = append(newLines, lines[insertLine:]...)
	newContent := strings.Join(newLines, "")

	if err := os.WriteFile(abs, []byte(newContent), 0o644); err != nil {
		ws.discardBackup(rel, backupRel)
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	ws.appendRecord(OperationRecord{
		Timestamp: time.Now(),
		Command:   "insert",
		Path:      path,
		Details: map[string]any{
			"line": insertLine,
			"text": inserted,
		},
		OldContent: &content,
		NewContent: &newContent,
	})
	return nil
}

// UndoEdit restores the file to its most recent backup and consumes that
// backup. Each successful call shortens the file's backup stack by exactly
// one; a file with no remaining backups fails with ErrNotFound.
func (ws *Workspace) UndoEdit(path string) (string, error) {
	abs, err := ws.resolve(path)
	if err != nil {
		return "", err
	}

	if _, err := os.Lstat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("failed to check file %s: %w", path, err)
	}

	rel := ws.relPath(abs)

	ws.mu.Lock()
	stack := ws.backups[rel]
	ws.mu.Unlock()
	if len(stack) == 0 {
		return "", fmt.Errorf("no backups found for %s: %w", path, ErrNotFound)
	}
	backupRel := stack[len(stack)-1]
	backupAbs := filepath.Join(ws.backupDir, backupRel)

	restored, err := os.ReadFile(backupAbs)
	if err != nil {
		return "", fmt.Errorf("failed to read backup for %s: %w", path, err)
	}
	if err := os.WriteFile(abs, restored, 0o644); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", path, err)
	}

	// The backup is consumed only once the restore has succeeded.
	ws.discardBackup(rel, backupRel)

	restoredContent := string(restored)
	ws.appendRecord(OperationRecord{
		Timestamp:  time.Now(),
		Command:    "undo_edit",
		Path:       path,
		Details:    map[string]any{"restored_from": filepath.Base(backupRel)},
		NewContent: &restoredContent,
	})
	return filepath.Base(backupRel), nil
}

// ListFiles walks the workspace and returns every regular file with its size
// and modification time. The backup directory and everything under it are
// excluded.
func (ws *Workspace) ListFiles() ([]FileInfo, error) {
	files := []FileInfo{}
	err := filepath.WalkDir(ws.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == ws.backupDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:     ws.relPath(path),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace files: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// GetFileContent returns the raw content of a file, with no line numbers or
// other transformation.
func (ws *Workspace) GetFileContent(path string) (string, error) {
	abs, err := ws.resolve(path)
	if err != nil {
		return "", err
	}
	return ws.readFile(abs, path)
}

// History returns the full ordered operation history.
func (ws *Workspace) History() []OperationRecord {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	records := make([]OperationRecord, len(ws.history))
	copy(records, ws.history)
	return records
}

// Cleanup deletes the workspace directory and everything under it, backups
// included. Calling it on an already-deleted workspace is a no-op.
func (ws *Workspace) Cleanup() error {
	if err := os.RemoveAll(ws.baseDir); err != nil {
		return fmt.Errorf("failed to clean up workspace: %w", err)
	}
	ws.mu.Lock()
	ws.backups = map[string][]string{}
	ws.mu.Unlock()
	return nil
}

func (ws *Workspace) readFile(abs string, path string) (string, error) {
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return string(content), nil
}

// backupFile snapshots content under the backup directory and pushes the
// snapshot onto the file's backup stack. Names combine a nanosecond timestamp
// with a monotonic sequence number, so two backups within the same clock tick
// still sort correctly and never collide.
func (ws *Workspace) backupFile(rel string, content string) (string, error) {
	ws.mu.Lock()
	ws.seq++
	seq := ws.seq
	ws.mu.Unlock()

	name := fmt.Sprintf("%s.%d.%06d", filepath.Base(rel), time.Now().UnixNano(), seq)
	backupRel := filepath.Join(filepath.Dir(rel), name)
	backupAbs := filepath.Join(ws.backupDir, backupRel)

	if err := os.MkdirAll(filepath.Dir(backupAbs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(backupAbs, []byte(content), 0o644); err != nil {
		return "", err
	}

	ws.mu.Lock()
	ws.backups[rel] = append(ws.backups[rel], backupRel)
	ws.mu.Unlock()
	return backupRel, nil
}

// discardBackup removes a backup from disk and from the file's stack. Used
// both when undo consumes a backup and when a failed write rolls one back.
func (ws *Workspace) discardBackup(rel string, backupRel string) {
	_ = os.Remove(filepath.Join(ws.backupDir, backupRel))

	ws.mu.Lock()
	defer ws.mu.Unlock()
	stack := ws.backups[rel]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == backupRel {
			ws.backups[rel] = append(stack[:i], stack[i+1:]...)
			break
		}
	}
}

// appendRecord commits a history record: appended to the in-memory log and to
// the durable history file in one step, under the workspace lock.
func (ws *Workspace) appendRecord(rec OperationRecord) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.history = append(ws.history, rec)

	line, err := json.Marshal(rec)
	if err != nil {
		log.Printf("Warning: failed to marshal history record for %s: %v", rec.Path, err)
		return
	}
	f, err := os.OpenFile(filepath.Join(ws.backupDir, historyFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: failed to open history log: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Printf("Warning: failed to append history record: %v", err)
	}
}

// loadHistory replays the durable history log into memory when re-attaching
// to an existing workspace directory.
func (ws *Workspace) loadHistory() error {
	data, err := os.ReadFile(filepath.Join(ws.backupDir, historyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var rec OperationRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("corrupt history entry: %w", err)
		}
		ws.history = append(ws.history, rec)
	}
	return nil
}

// rebuildBackupStacks reconstructs the per-file backup stacks from the backup
// directory. Entries are ordered by timestamp then sequence number, so the
// stacks come back in the same order they were created in.
func (ws *Workspace) rebuildBackupStacks() error {
	type parsedBackup struct {
		rel       string
		backupRel string
		ts        int64
		seq       uint64
	}
	var parsed []parsedBackup

	err := filepath.WalkDir(ws.backupDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		m := backupNamePattern.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		ts, tsErr := strconv.ParseInt(m[2], 10, 64)
		seq, seqErr := strconv.ParseUint(m[3], 10, 64)
		if tsErr != nil || seqErr != nil {
			return nil
		}
		backupRel, relErr := filepath.Rel(ws.backupDir, path)
		if relErr != nil {
			return relErr
		}
		parsed = append(parsed, parsedBackup{
			rel:       filepath.Join(filepath.Dir(backupRel), m[1]),
			backupRel: backupRel,
			ts:        ts,
			seq:       seq,
		})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(parsed, func(i, j int) bool {
		if parsed[i].ts != parsed[j].ts {
			return parsed[i].ts < parsed[j].ts
		}
		return parsed[i].seq < parsed[j].seq
	})
	for _, p := range parsed {
		ws.backups[p.rel] = append(ws.backups[p.rel], p.backupRel)
		if p.seq > ws.seq {
			ws.seq = p.seq
		}
	}
	return nil
}

// splitKeepingNewlines splits content into lines that retain their trailing
// newline characters, matching how the insert operation counts lines. Content
// ending with a newline does not produce a trailing empty line.
func splitKeepingNewlines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
