package qa

import (
	"fmt"
	"strconv"
)

// Level is a question difficulty in [1,4].
type Level int

const (
	LevelMin     Level = 1
	LevelMax     Level = 4
	LevelDefault Level = 2
)

// NewLevel rejects out-of-range values.
func NewLevel(n int) (Level, error) {
	if n < int(LevelMin) || n > int(LevelMax) {
		return 0, fmt.Errorf("level must be in [1,4], got %d", n)
	}
	return Level(n), nil
}

// LevelFromAny converts a loosely typed value into a Level, defaulting to 2
// on anything unparseable or out of range. LLM output arrives as JSON so the
// value may be a float, a string or missing entirely.
func LevelFromAny(v any) Level {
	switch n := v.(type) {
	case int:
		if l, err := NewLevel(n); err == nil {
			return l
		}
	case int64:
		if l, err := NewLevel(int(n)); err == nil {
			return l
		}
	case float64:
		if n == float64(int(n)) {
			if l, err := NewLevel(int(n)); err == nil {
				return l
			}
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			if l, err := NewLevel(i); err == nil {
				return l
			}
		}
	}
	return LevelDefault
}

// Int returns the level as a plain integer.
func (l Level) Int() int { return int(l) }
