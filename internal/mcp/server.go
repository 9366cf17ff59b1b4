package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/jot/internal/board"
	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/db"
	"github.com/hpungsan/jot/internal/pipeline"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"session_start": {
		def:     sessionStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStart },
	},
	"session_stop": {
		def:     sessionStopToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStop },
	},
	"session_status": {
		def:     sessionStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionStatus },
	},
	"notes_list": {
		def:     notesListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNotesList },
	},
	"note_update": {
		def:     noteUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteUpdate },
	},
	"note_remove": {
		def:     noteRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteRemove },
	},
	"segments_recent": {
		def:     segmentsRecentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSegmentsRecent },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with Jot tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(pipe *pipeline.Pipeline, b *board.Board, journal *db.Journal, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jot",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(pipe, b, journal, cfg)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport. A running session is
// stopped when the transport closes.
func Run(pipe *pipeline.Pipeline, b *board.Board, journal *db.Journal, cfg *config.Config, version string) error {
	s := NewServer(pipe, b, journal, cfg, version)
	defer pipe.StopSession()
	return server.ServeStdio(s)
}
