package match

import (
	"fmt"
	"strings"
	"time"
)

// Config selects and configures the matching backend at startup.
type Config struct {
	Backend    string
	RemoteURL  string
	Timeout    time.Duration
	Thresholds Thresholds
}

// New creates a matcher based on the provided configuration. The backend is
// an explicit configuration choice rather than runtime environment sniffing.
func New(cfg Config) (Matcher, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "heuristic", "local":
		return NewHeuristicMatcher(cfg.Thresholds), nil
	case "remote":
		return NewRemoteMatcher(cfg.RemoteURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported matching backend: %s", cfg.Backend)
	}
}
