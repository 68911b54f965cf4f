package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler passes n out of every window debug lines. Per-update
// receipt lines would otherwise drown the log whenever a delivery batch
// or a busy group keeps the bot talking.
type ratioSampler struct {
	mu      sync.Mutex
	pass    int
	window  int
	counter int
}

func newRatioSampler(pass, window int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(pass, window)
	return s
}

// Set configures the ratio. Non-positive values disable sampling so
// every line passes.
func (s *ratioSampler) Set(pass, window int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pass <= 0 || window <= 0 {
		s.pass = 0
		s.window = 0
		s.counter = 0
		return
	}
	if pass > window {
		pass = window
	}
	s.pass = pass
	s.window = window
	s.counter = 0
}

// Allow reports whether the current line falls inside the pass quota of
// its window.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window <= 0 || s.pass <= 0 {
		return true
	}
	s.counter++
	if s.counter > s.window {
		s.counter = 1
	}
	return s.counter <= s.pass
}

// parseRatioSpec accepts "1/50" style fractions or a bare "50" meaning
// one in fifty.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if strings.Contains(spec, "/") {
		parts := strings.SplitN(spec, "/", 2)
		num, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		den, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 == nil && err2 == nil {
			return num, den
		}
	}
	if v, err := strconv.Atoi(spec); err == nil {
		if v <= 0 {
			return 0, 0
		}
		return 1, v
	}
	return 0, 0
}
