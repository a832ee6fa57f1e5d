package tui

import (
	"sort"
	"strings"
	"sync"

	"github.com/jaeyo/go-drain3/pkg/drain3"
	"github.com/rs/zerolog/log"
)

// LogPattern is one drain3 cluster: a template with wildcards and the
// number of log messages it absorbed.
type LogPattern struct {
	Template   string
	Count      int
	Percentage float64
}

// PatternMiner groups log messages into templates.
type PatternMiner struct {
	mu    sync.Mutex
	drain *drain3.Drain
	total int
}

// NewPatternMiner creates an empty miner.
func NewPatternMiner() *PatternMiner {
	pm := &PatternMiner{}
	pm.reset()
	return pm
}

func (pm *PatternMiner) reset() {
	d, err := drain3.NewDrain(drain3.WithSimTh(0.4), drain3.WithMaxCluster(500))
	if err != nil {
		log.Error().Err(err).Msg("patterns: init drain")
	}
	pm.drain = d
	pm.total = 0
}

// AddLogMessage feeds one message to the miner. Blank messages are skipped.
func (pm *PatternMiner) AddLogMessage(msg string) {
	tokens := strings.Fields(msg)
	if len(tokens) == 0 {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.drain == nil {
		return
	}
	if _, _, err := pm.drain.AddLogMessage(strings.Join(tokens, " ")); err != nil {
		log.Debug().Err(err).Msg("patterns: add message")
		return
	}
	pm.total++
}

// GetTopPatterns returns up to n patterns, most frequent first.
func (pm *PatternMiner) GetTopPatterns(n int) []LogPattern {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.drain == nil || pm.total == 0 || n <= 0 {
		return nil
	}

	clusters := pm.drain.GetClusters()
	out := make([]LogPattern, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, LogPattern{
			Template:   c.GetTemplate(),
			Count:      int(c.Size),
			Percentage: float64(c.Size) * 100 / float64(pm.total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Template < out[j].Template
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// GetStats returns the number of patterns and of messages fed in.
func (pm *PatternMiner) GetStats() (patternCount, totalLogs int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.drain == nil {
		return 0, pm.total
	}
	return len(pm.drain.GetClusters()), pm.total
}

// Reset drops every pattern.
func (pm *PatternMiner) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.reset()
}
