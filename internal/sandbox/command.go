package sandbox

import (
	"encoding/json"
	"fmt"
)

// Command is one decoded text editor command. The set of implementations is
// closed: DecodeCommand is the only constructor, and each variant knows how to
// run itself against a workspace, so dispatch is exhaustive by construction.
// The unknown-command failure exists only at the decode boundary.
type Command interface {
	// Name returns the wire-level command tag.
	Name() string

	run(ws *Workspace) (string, error)
}

// ViewCommand returns file content with line numbers, or a directory listing.
type ViewCommand struct {
	Path      string
	ViewRange []int
}

// CreateCommand writes a new file.
type CreateCommand struct {
	Path     string
	FileText string
}

// StrReplaceCommand replaces a unique occurrence of OldStr with NewStr.
type StrReplaceCommand struct {
	Path   string
	OldStr string
	NewStr string
}

// InsertCommand splices Text in after InsertLine existing lines.
type InsertCommand struct {
	Path       string
	InsertLine int
	Text       string
}

// UndoEditCommand restores the file from its most recent backup.
type UndoEditCommand struct {
	Path string
}

func (c ViewCommand) Name() string       { return "view" }
func (c CreateCommand) Name() string     { return "create" }
func (c StrReplaceCommand) Name() string { return "str_replace" }
func (c InsertCommand) Name() string     { return "insert" }
func (c UndoEditCommand) Name() string   { return "undo_edit" }

func (c ViewCommand) run(ws *Workspace) (string, error) {
	return ws.View(c.Path, c.ViewRange)
}

func (c CreateCommand) run(ws *Workspace) (string, error) {
	if err := ws.Create(c.Path, c.FileText); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created %s", c.Path), nil
}

func (c StrReplaceCommand) run(ws *Workspace) (string, error) {
	if err := ws.StrReplace(c.Path, c.OldStr, c.NewStr); err != nil {
		return "", err
	}
	return "Successfully replaced text", nil
}

func (c InsertCommand) run(ws *Workspace) (string, error) {
	if err := ws.Insert(c.Path, c.InsertLine, c.Text); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully inserted text after line %d", c.InsertLine), nil
}

func (c UndoEditCommand) run(ws *Workspace) (string, error) {
	if _, err := ws.UndoEdit(c.Path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully restored %s from backup", c.Path), nil
}

// commandPayload is the wire shape of a tool call. Pointer fields distinguish
// absent keys from legitimate empty values, e.g. an empty new_str that deletes
// text.
type commandPayload struct {
	Command    string  `json:"command"`
	Path       string  `json:"path"`
	FileText   *string `json:"file_text"`
	OldStr     *string `json:"old_str"`
	NewStr     *string `json:"new_str"`
	InsertLine *int    `json:"insert_line"`
	ViewRange  []int   `json:"view_range"`
}

// DecodeCommand parses a raw tool input payload into a typed command,
// validating the command tag and required command-specific fields once at the
// boundary. Missing required fields fail fast; nothing is defaulted.
func DecodeCommand(raw json.RawMessage) (Command, error) {
	var payload commandPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse command payload: %w", err)
	}

	switch payload.Command {
	case "view":
		if len(payload.ViewRange) != 0 && len(payload.ViewRange) != 2 {
			return nil, fmt.Errorf("view_range must be [start, end], got %d elements", len(payload.ViewRange))
		}
		return ViewCommand{Path: payload.Path, ViewRange: payload.ViewRange}, nil
	case "create":
		if payload.FileText == nil {
			return nil, fmt.Errorf("file_text is required for create")
		}
		return CreateCommand{Path: payload.Path, FileText: *payload.FileText}, nil
	case "str_replace":
		if payload.OldStr == nil {
			return nil, fmt.Errorf("old_str is required for str_replace")
		}
		if payload.NewStr == nil {
			return nil, fmt.Errorf("new_str is required for str_replace")
		}
		return StrReplaceCommand{Path: payload.Path, OldStr: *payload.OldStr, NewStr: *payload.NewStr}, nil
	case "insert":
		if payload.InsertLine == nil {
			return nil, fmt.Errorf("insert_line is required for insert")
		}
		if payload.NewStr == nil {
			return nil, fmt.Errorf("new_str is required for insert")
		}
		return InsertCommand{Path: payload.Path, InsertLine: *payload.InsertLine, Text: *payload.NewStr}, nil
	case "undo_edit":
		return UndoEditCommand{Path: payload.Path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, payload.Command)
	}
}

// Run executes a decoded command against the workspace and returns the
// success string reported back to the caller.
func (ws *Workspace) Run(cmd Command) (string, error) {
	return cmd.run(ws)
}
