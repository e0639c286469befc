package entities

import (
	"fmt"
	"log/slog"
)

// Provider names accepted by New.
const (
	ProviderHeuristic = "heuristic"
	ProviderAnthropic = "anthropic"
)

// Config selects and tunes the detector chain.
type Config struct {
	Provider      string
	Anthropic     AnthropicConfig
	RatePerSecond float64
	Burst         int
}

// New builds the detector for cfg.Provider. The Anthropic provider falls back
// to the heuristic detector and is rate limited when RatePerSecond is positive.
func New(cfg Config, logger *slog.Logger) (Detector, error) {
	switch cfg.Provider {
	case "", ProviderHeuristic:
		return HeuristicDetector{}, nil
	case ProviderAnthropic:
		remote, err := NewAnthropic(cfg.Anthropic)
		if err != nil {
			return nil, err
		}
		var primary Detector = remote
		if cfg.RatePerSecond > 0 {
			primary = NewThrottled(remote, cfg.RatePerSecond, cfg.Burst)
		}
		return Fallback{Primary: primary, Secondary: HeuristicDetector{}, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("entities: unknown provider %q", cfg.Provider)
	}
}
