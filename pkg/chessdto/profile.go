package chessdto

// Stats mirrors the persisted single-player record.
type Stats struct {
	Wins           int   `json:"wins"`
	Losses         int   `json:"losses"`
	Draws          int   `json:"draws"`
	UnlockedLevels []int `json:"unlockedLevels"`
}

type Opponent struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}
