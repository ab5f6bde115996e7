// FILE: src/internal/filter/filter.go
package filter

import (
	"fmt"
	"strings"
	"sync/atomic"

	"logrelay/src/internal/core"
)

// Kind discriminates the clause variants
type Kind uint8

const (
	KindLevel Kind = iota
	KindDomain
	KindService
	KindCorrelation
	KindKeyword
	KindSample
)

func (k Kind) String() string {
	switch k {
	case KindLevel:
		return "level"
	case KindDomain:
		return "domain"
	case KindService:
		return "service"
	case KindCorrelation:
		return "correlation"
	case KindKeyword:
		return "keyword"
	case KindSample:
		return "sample"
	default:
		return "unknown"
	}
}

// Clause is one predicate over a log record. Only the payload matching
// Kind is populated.
type Clause struct {
	Kind Kind

	Levels        map[core.Level]struct{}
	Domains       map[core.Domain]struct{}
	Services      map[string]struct{}
	CorrelationID string
	Keyword       string
	Rate          float64
}

// ClauseConfig is the wire form of a clause, as carried in subscribe
// requests
type ClauseConfig struct {
	Type          string   `json:"type"`
	Levels        []string `json:"levels,omitempty"`
	Domains       []string `json:"domains,omitempty"`
	Services      []string `json:"services,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	Keyword       string   `json:"keyword,omitempty"`
	Rate          float64  `json:"rate,omitempty"`
}

// Set is an ordered, ANDed clause list evaluated against the record
// stream. Sampling clauses are excluded from Match and applied last via
// SampleRate.
type Set struct {
	clauses []Clause
	configs []ClauseConfig
	rate    float64 // effective sampling rate, 1.0 = no sampling

	totalEvaluated atomic.Uint64
	totalMatched   atomic.Uint64
}

// Parse validates clause configs and builds an evaluable set
func Parse(configs []ClauseConfig) (*Set, error) {
	s := &Set{
		configs: configs,
		rate:    1.0,
	}

	for i, cfg := range configs {
		clause, err := parseClause(cfg)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}

		if clause.Kind == KindSample {
			// Applied after matching, not as a predicate
			if clause.Rate < s.rate {
				s.rate = clause.Rate
			}
			continue
		}
		s.clauses = append(s.clauses, clause)
	}

	return s, nil
}

func parseClause(cfg ClauseConfig) (Clause, error) {
	switch cfg.Type {
	case "level":
		if len(cfg.Levels) == 0 {
			return Clause{}, fmt.Errorf("level filter requires at least one level")
		}
		levels := make(map[core.Level]struct{}, len(cfg.Levels))
		for _, l := range cfg.Levels {
			level := core.Level(l)
			if !core.ValidLevel(level) {
				return Clause{}, fmt.Errorf("unrecognized level %q", l)
			}
			levels[level] = struct{}{}
		}
		return Clause{Kind: KindLevel, Levels: levels}, nil

	case "domain":
		if len(cfg.Domains) == 0 {
			return Clause{}, fmt.Errorf("domain filter requires at least one domain")
		}
		domains := make(map[core.Domain]struct{}, len(cfg.Domains))
		for _, d := range cfg.Domains {
			domain := core.Domain(d)
			if !core.ValidDomain(domain) {
				return Clause{}, fmt.Errorf("unrecognized domain %q", d)
			}
			domains[domain] = struct{}{}
		}
		return Clause{Kind: KindDomain, Domains: domains}, nil

	case "service":
		if len(cfg.Services) == 0 {
			return Clause{}, fmt.Errorf("service filter requires at least one service name")
		}
		services := make(map[string]struct{}, len(cfg.Services))
		for _, svc := range cfg.Services {
			services[svc] = struct{}{}
		}
		return Clause{Kind: KindService, Services: services}, nil

	case "correlation":
		if cfg.CorrelationID == "" {
			return Clause{}, fmt.Errorf("correlation filter requires correlation_id")
		}
		return Clause{Kind: KindCorrelation, CorrelationID: cfg.CorrelationID}, nil

	case "keyword":
		if cfg.Keyword == "" {
			return Clause{}, fmt.Errorf("keyword filter requires keyword")
		}
		return Clause{Kind: KindKeyword, Keyword: strings.ToLower(cfg.Keyword)}, nil

	case "sample":
		if cfg.Rate <= 0 || cfg.Rate > 1 {
			return Clause{}, fmt.Errorf("sample rate must be in (0, 1], got %v", cfg.Rate)
		}
		return Clause{Kind: KindSample, Rate: cfg.Rate}, nil

	default:
		return Clause{}, fmt.Errorf("unknown filter type %q", cfg.Type)
	}
}

// Match reports whether the record satisfies every configured clause
func (s *Set) Match(rec *core.LogRecord) bool {
	s.totalEvaluated.Add(1)

	for i := range s.clauses {
		if !s.clauses[i].match(rec) {
			return false
		}
	}

	s.totalMatched.Add(1)
	return true
}

func (c *Clause) match(rec *core.LogRecord) bool {
	switch c.Kind {
	case KindLevel:
		_, ok := c.Levels[rec.Level]
		return ok
	case KindDomain:
		_, ok := c.Domains[rec.Domain]
		return ok
	case KindService:
		_, ok := c.Services[rec.ServiceName]
		return ok
	case KindCorrelation:
		return rec.CorrelationID == c.CorrelationID
	case KindKeyword:
		return strings.Contains(strings.ToLower(rec.Message), c.Keyword)
	case KindSample:
		// Sampling never participates in matching
		return true
	default:
		return false
	}
}

// SampleRate is the effective sampling rate for matched records,
// 1.0 when no sampling clause is configured
func (s *Set) SampleRate() float64 {
	return s.rate
}

// Configs returns the wire form the set was built from, echoed back to
// subscribers on create
func (s *Set) Configs() []ClauseConfig {
	return s.configs
}

// GetStats returns filter evaluation statistics
func (s *Set) GetStats() map[string]any {
	return map[string]any{
		"clause_count":    len(s.clauses),
		"sample_rate":     s.rate,
		"total_evaluated": s.totalEvaluated.Load(),
		"total_matched":   s.totalMatched.Load(),
	}
}
