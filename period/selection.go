package period

import (
	"sync"
	"time"
)

// Selection is the user's period navigation state: an explicitly selected
// period plus an offset in windows from the current one. Callers own it and
// pass the period they want into debt computation.
type Selection struct {
	mu        sync.RWMutex
	anchorDay int
	now       func() time.Time
	selected  Period
	offset    int
}

// NewSelection starts on the current period. A nil now uses time.Now.
func NewSelection(anchorDay int, now func() time.Time) *Selection {
	if now == nil {
		now = time.Now
	}
	s := &Selection{anchorDay: ClampAnchorDay(anchorDay), now: now}
	s.selected = s.Current()
	return s
}

// Current is the window containing now.
func (s *Selection) Current() Period {
	return Current(s.now(), s.anchorDay)
}

// Periods is the rolling window of the current and previousCount prior periods.
func (s *Selection) Periods(previousCount int) []Period {
	return Generate(s.Current(), previousCount)
}

func (s *Selection) Selected() Period {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Selection) Set(p Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = p
}

// Reset selects the current period and clears the offset.
func (s *Selection) Reset() Period {
	current := s.Current()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = current
	s.offset = 0
	return current
}

func (s *Selection) Offset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// AtOffset is the period offset windows away from the current one.
func (s *Selection) AtOffset(offset int) Period {
	return s.Current().PreviousMonthly(-offset)
}

// Prev moves the offset one window back.
func (s *Selection) Prev() Period {
	return s.shift(-1)
}

// Next moves the offset one window forward.
func (s *Selection) Next() Period {
	return s.shift(1)
}

func (s *Selection) shift(delta int) Period {
	s.mu.Lock()
	s.offset += delta
	offset := s.offset
	s.mu.Unlock()
	return s.AtOffset(offset)
}
