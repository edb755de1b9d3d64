package chessdto

type LastMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MoveSummary describes one accepted local move.
type MoveSummary struct {
	SAN             string `json:"san"`
	UCI             string `json:"uci"`
	Captured        string `json:"captured,omitempty"`
	Outcome         string `json:"outcome"`
	RemoteScheduled bool   `json:"remoteScheduled"`
}
