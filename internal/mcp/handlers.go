package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/jot/internal/audio"
	"github.com/hpungsan/jot/internal/board"
	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/db"
	"github.com/hpungsan/jot/internal/errors"
	"github.com/hpungsan/jot/internal/note"
	"github.com/hpungsan/jot/internal/pipeline"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	pipe    *pipeline.Pipeline
	board   *board.Board
	journal *db.Journal
	cfg     *config.Config
}

// NewHandlers creates a new Handlers instance. journal may be nil when the
// segment journal is disabled.
func NewHandlers(pipe *pipeline.Pipeline, b *board.Board, journal *db.Journal, cfg *config.Config) *Handlers {
	return &Handlers{pipe: pipe, board: b, journal: journal, cfg: cfg}
}

// Request types for each tool

// SessionStartRequest represents the arguments for session_start.
// With Path set the session reads a WAV file; otherwise it runs the
// configured capture command.
type SessionStartRequest struct {
	Path     string `json:"path,omitempty"`
	Realtime *bool  `json:"realtime,omitempty"`
}

// NoteUpdateRequest represents the arguments for note_update.
type NoteUpdateRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// NoteRemoveRequest represents the arguments for note_remove.
type NoteRemoveRequest struct {
	ID string `json:"id"`
}

// SegmentsRecentRequest represents the arguments for segments_recent.
type SegmentsRecentRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Response types

// NotesOutput is returned by notes_list.
type NotesOutput struct {
	Notes []note.Note `json:"notes"`
	Count int         `json:"count"`
}

// SegmentsOutput is returned by segments_recent.
type SegmentsOutput struct {
	Segments []db.Segment `json:"segments"`
	Total    int          `json:"total"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}

// Handler implementations

// HandleSessionStart handles the session_start tool call.
func (h *Handlers) HandleSessionStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionStartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var dev audio.Device
	if path := strings.TrimSpace(input.Path); path != "" {
		if err := validateInputPath(path, h.cfg); err != nil {
			return errorResult(err), nil
		}
		realtime := true
		if input.Realtime != nil {
			realtime = *input.Realtime
		}
		dev = audio.FileDevice{Path: path, Realtime: realtime}
	} else {
		if strings.TrimSpace(h.cfg.CaptureCommand) == "" {
			return errorResult(errors.NewInvalidRequest("path is required when capture_command is not configured")), nil
		}
		dev = audio.CommandDevice{Command: h.cfg.CaptureCommand, SampleRate: h.cfg.SampleRate}
	}

	if err := h.pipe.StartSession(ctx, dev); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.pipe.Status())
}

// HandleSessionStop handles the session_stop tool call.
func (h *Handlers) HandleSessionStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.pipe.StopSession(); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.pipe.Status())
}

// HandleSessionStatus handles the session_status tool call.
func (h *Handlers) HandleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.pipe.Status())
}

// HandleNotesList handles the notes_list tool call.
func (h *Handlers) HandleNotesList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes := h.board.List()
	if notes == nil {
		notes = []note.Note{}
	}
	return successResult(NotesOutput{Notes: notes, Count: len(notes)})
}

// HandleNoteUpdate handles the note_update tool call.
func (h *Handlers) HandleNoteUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	n, err := h.board.Update(input.ID, input.Content)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(n)
}

// HandleNoteRemove handles the note_remove tool call.
func (h *Handlers) HandleNoteRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteRemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if err := h.board.Remove(input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"id": input.ID, "removed": true})
}

// HandleSegmentsRecent handles the segments_recent tool call.
func (h *Handlers) HandleSegmentsRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.journal == nil {
		return errorResult(errors.NewInvalidRequest("segment journal is disabled")), nil
	}

	input, err := decode[SegmentsRecentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Limit < 0 || input.Offset < 0 {
		return errorResult(errors.NewInvalidRequest("limit and offset must not be negative")), nil
	}

	opts := db.ListOptions{
		SessionID: input.SessionID,
		Outcome:   input.Outcome,
		Limit:     input.Limit,
		Offset:    input.Offset,
	}
	segments, total, err := h.journal.Recent(opts)
	if err != nil {
		return errorResult(err), nil
	}
	if segments == nil {
		segments = []db.Segment{}
	}

	limit := input.Limit
	if limit == 0 {
		limit = db.DefaultListLimit
	}
	return successResult(SegmentsOutput{
		Segments: segments,
		Total:    total,
		Limit:    min(limit, db.MaxListLimit),
		Offset:   input.Offset,
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var jotErr *errors.JotError
	if stderrors.As(err, &jotErr) && jotErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    jotErr.Code,
			"message": jotErr.Message,
			"status":  jotErr.Status,
		}
		if jotErr.Details != nil {
			errorObj["details"] = jotErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
