package chessdto

// MaterialScore is the captured material value per capturing side (P=1 N=3 B=3 R=5 Q=9).
type MaterialScore struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// CapturedPieces lists piece tokens ("pawn", "knight", ...) taken by each side, oldest first.
type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type Notice struct {
	Key       string `json:"key,omitempty"`
	Text      string `json:"text,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

// SessionState is the full view pushed to clients after every change.
type SessionState struct {
	Active     bool      `json:"active"`
	SessionID  string    `json:"sessionId,omitempty"`
	Generation uint64    `json:"generation"`
	Mode       string    `json:"mode,omitempty"`
	Level      int       `json:"level,omitempty"`
	Opponent   *Opponent `json:"opponent,omitempty"`

	FEN        string         `json:"fen,omitempty"`
	Turn       string         `json:"turn,omitempty"`
	Awaiting   bool           `json:"awaiting"`
	HumanTurn  bool           `json:"humanTurn"`
	MovesSAN   []string       `json:"movesSan"`
	MovesUCI   []string       `json:"movesUci"`
	MoveCount  int            `json:"moveCount"`
	Material   MaterialScore  `json:"material"`
	Captured   CapturedPieces `json:"captured"`
	Outcome    string         `json:"outcome,omitempty"`
	DrawMethod string         `json:"drawMethod,omitempty"`
	Status     string         `json:"status,omitempty"`
	LastMove   *LastMove      `json:"lastMove,omitempty"`
	LastError  string         `json:"lastError,omitempty"`

	Notice         Notice `json:"notice"`
	Readiness      string `json:"readiness"`
	ReadinessError string `json:"readinessError,omitempty"`
	Theme          string `json:"theme"`
	Stats          *Stats `json:"stats,omitempty"`
}
