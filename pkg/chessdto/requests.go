package chessdto

import "encoding/json"

// Command types accepted from clients.
const (
	CmdStart       = "start"
	CmdMove        = "move"
	CmdUndo        = "undo"
	CmdRetry       = "retry"
	CmdRetryRemote = "retry_remote"
	CmdTheme       = "theme"
	CmdSnapshot    = "snapshot"
	CmdImage       = "image"
)

// Frame types pushed to clients.
const (
	FrameState  = "state"
	FrameMove   = "move"
	FrameNotice = "notice"
	FrameError  = "error"
	FrameImage  = "image"
)

// Command is one client request. Mode is "single" (default) or "pvp".
type Command struct {
	Type      string `json:"type"`
	Mode      string `json:"mode,omitempty"`
	Level     int    `json:"level,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

// Frame is one server push; Data holds the frame-specific payload.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ImagePayload struct {
	MIME   string `json:"mime"`
	Base64 string `json:"base64"`
}
