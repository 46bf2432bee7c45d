package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler admits num out of every den events. A zero ratio admits
// everything.
type ratioSampler struct {
	mu   sync.Mutex
	num  int
	den  int
	tick int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the cycle.
func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		s.num, s.den, s.tick = 0, 0, 0
		return
	}
	if num > den {
		num = den
	}
	s.num = num
	s.den = den
	s.tick = 0
}

// Allow reports whether the current event passes the sample.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den <= 0 || s.num <= 0 {
		return true
	}
	s.tick++
	if s.tick > s.den {
		s.tick = 1
	}
	return s.tick <= s.num
}

// parseRatioSpec reads "1/10" or a bare denominator like "10". Anything
// unparseable disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil {
			return n, d
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
