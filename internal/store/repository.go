package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/checkmate-ai/internal/domain"
)

// ErrCorruptRecord means a stored value exists but cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt stored record")

const (
	KeyProgression = "chessGameStats"
	KeyDarkMode    = "darkMode"
)

type ProgressRepository struct {
	kv     KV
	gating bool
	logger *zap.Logger
}

func NewProgressRepository(kv KV, gating bool, logger *zap.Logger) *ProgressRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressRepository{kv: kv, gating: gating, logger: logger}
}

// Load returns the stored record, creating the default one on first read.
// An unreadable record is reported as ErrCorruptRecord and left in place.
func (r *ProgressRepository) Load(ctx context.Context) (domain.Progression, error) {
	raw, err := r.kv.Get(ctx, KeyProgression)
	if err != nil {
		return domain.Progression{}, fmt.Errorf("load progression: %w", err)
	}
	if raw == nil {
		return r.Update(ctx, func(*domain.Progression) {})
	}
	return r.decode(raw)
}

// Update applies fn to the stored record as one atomic read-modify-write.
func (r *ProgressRepository) Update(ctx context.Context, fn func(*domain.Progression)) (domain.Progression, error) {
	var out domain.Progression
	err := r.kv.Update(ctx, KeyProgression, func(current []byte) ([]byte, error) {
		p := domain.DefaultProgression(r.gating)
		if current != nil {
			var err error
			if p, err = r.decode(current); err != nil {
				return nil, err
			}
		}
		fn(&p)
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal progression: %w", err)
		}
		out = p
		return raw, nil
	})
	if err != nil {
		return domain.Progression{}, fmt.Errorf("update progression: %w", err)
	}
	return out, nil
}

func (r *ProgressRepository) decode(raw []byte) (domain.Progression, error) {
	var p domain.Progression
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Error("unreadable progression record", zap.ByteString("raw", raw), zap.Error(err))
		return domain.Progression{}, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, KeyProgression, err)
	}
	if p.UnlockedLevels == nil {
		p.UnlockedLevels = domain.DefaultProgression(r.gating).UnlockedLevels
	}
	return p, nil
}

type PreferenceRepository struct {
	kv KV
}

func NewPreferenceRepository(kv KV) *PreferenceRepository {
	return &PreferenceRepository{kv: kv}
}

// Load reads the stored theme; absent or unreadable values mean light.
func (r *PreferenceRepository) Load(ctx context.Context) (domain.Theme, error) {
	raw, err := r.kv.Get(ctx, KeyDarkMode)
	if err != nil {
		return domain.ThemeLight, fmt.Errorf("load theme: %w", err)
	}
	var dark bool
	if raw != nil && json.Unmarshal(raw, &dark) == nil {
		return domain.ThemeFromDark(dark), nil
	}
	return domain.ThemeLight, nil
}

func (r *PreferenceRepository) Save(ctx context.Context, theme domain.Theme) error {
	raw, _ := json.Marshal(theme.Dark())
	if err := r.kv.Set(ctx, KeyDarkMode, raw); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
