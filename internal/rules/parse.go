package rules

import (
	"fmt"
	"strings"
)

// ParseMove accepts "e2e4", "e2 e4", "e2-e4" and a trailing promotion letter ("e7e8q", "e7-e8=Q").
func ParseMove(text string) (Move, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.NewReplacer(" ", "", "-", "", "=", "", "x", "").Replace(s)
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, text)
	}
	mv := Move{From: s[:2], To: s[2:4]}
	if _, err := parseSquare(mv.From); err != nil {
		return Move{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if _, err := parseSquare(mv.To); err != nil {
		return Move{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	if len(s) == 5 {
		if !strings.ContainsRune("qrbn", rune(s[4])) {
			return Move{}, fmt.Errorf("%w: bad promotion %q", ErrIllegalMove, s[4:])
		}
		mv.Promotion = s[4:]
	}
	return mv, nil
}
