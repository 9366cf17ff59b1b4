package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/jot/internal/db"
)

var sessionStartToolDef = mcp.NewTool("session_start",
	mcp.WithDescription("Start a recording session. Notes appear on the board as speech is accepted. "+
		"Reads a 16-bit mono WAV file when path is given, otherwise runs the configured capture command."),
	mcp.WithString("path",
		mcp.Description("WAV file to play as the microphone. Must be directly in ~/.jot/recordings or an allowed_paths directory"),
	),
	mcp.WithBoolean("realtime",
		mcp.Description("Pace the WAV file at its sample rate (default true)"),
	),
)

var sessionStopToolDef = mcp.NewTool("session_stop",
	mcp.WithDescription("Stop the running session, flushing buffered speech into a final note. No-op when idle."),
)

var sessionStatusToolDef = mcp.NewTool("session_status",
	mcp.WithDescription("Report whether a session is active, the input level, busy state, "+
		"the last quality score and how many segments were filtered."),
)

var notesListToolDef = mcp.NewTool("notes_list",
	mcp.WithDescription("List the notes on the board, oldest first."),
)

var noteUpdateToolDef = mcp.NewTool("note_update",
	mcp.WithDescription("Replace the content of a board note."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Note ID"),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("New note text"),
	),
)

var noteRemoveToolDef = mcp.NewTool("note_remove",
	mcp.WithDescription("Remove a note from the board. Removed notes no longer block similar speech."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Note ID"),
	),
)

var segmentsRecentToolDef = mcp.NewTool("segments_recent",
	mcp.WithDescription("List recent flush decisions from the segment journal, newest first."),
	mcp.WithString("session_id",
		mcp.Description("Only segments from this session"),
	),
	mcp.WithString("outcome",
		mcp.Description("Only segments with this outcome"),
		mcp.Enum(db.OutcomeAccepted, db.OutcomeLowQuality, db.OutcomeExactDuplicate,
			db.OutcomeNearDuplicate, db.OutcomeBoardDuplicate),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum segments to return (default 20, max 200)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Segments to skip"),
	),
)
