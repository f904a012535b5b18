package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry maps opaque session identifiers to workspaces. It is owned by the
// hosting application and passed to whatever drives the sandbox; it is never
// package-level state.
//
// Entries live until Delete is called. Workspaces are disk-backed, so the map
// itself stays small, but cleaning up sessions is the caller's responsibility;
// the registry does not expire anything on its own.
type Registry struct {
	rootDir string

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewRegistry creates a registry whose workspaces live under rootDir, one
// subdirectory per session.
func NewRegistry(rootDir string) *Registry {
	return &Registry{
		rootDir:    rootDir,
		workspaces: map[string]*Workspace{},
	}
}

// Create generates a fresh session identifier and its workspace.
func (r *Registry) Create() (string, *Workspace, error) {
	id := uuid.NewString()
	ws, err := r.GetOrCreate(id)
	if err != nil {
		return "", nil, err
	}
	return id, ws, nil
}

// GetOrCreate returns the workspace for id, creating it on first reference.
// Insert-if-absent happens under the registry lock, so two concurrent first
// references to the same id share one workspace instance.
func (r *Registry) GetOrCreate(id string) (*Workspace, error) {
	if err := validateSessionID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[id]; ok {
		return ws, nil
	}
	ws, err := NewWorkspace(filepath.Join(r.rootDir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace for session %s: %w", id, err)
	}
	r.workspaces[id] = ws
	return ws, nil
}

// Open attaches to an existing session without creating one. It returns
// ErrNotFound when no session directory exists for id, so inspection and
// deletion paths never leave empty workspace trees behind.
func (r *Registry) Open(id string) (*Workspace, error) {
	if err := validateSessionID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[id]; ok {
		return ws, nil
	}

	dir := filepath.Join(r.rootDir, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no such session %s: %w", id, ErrNotFound)
	}
	ws, err := NewWorkspace(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace for session %s: %w", id, err)
	}
	r.workspaces[id] = ws
	return ws, nil
}

// Get returns the workspace for id if it exists in the registry.
func (r *Registry) Get(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	return ws, ok
}

// Delete cleans up the session's workspace tree and removes the registry
// entry. Deleting an unknown session is a no-op.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	ws, ok := r.workspaces[id]
	delete(r.workspaces, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := ws.Cleanup(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// IDs returns the identifiers of all registered sessions, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.workspaces))
	for id := range r.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// validateSessionID rejects identifiers that could escape the registry root
// when joined into a directory path.
func validateSessionID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q: %w", id, ErrAccessDenied)
	}
	return nil
}
