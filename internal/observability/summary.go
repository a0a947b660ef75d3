package observability

import (
	"fmt"
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary aggregates the session's metrics for --stats output.
type Summary struct {
	Duration       time.Duration
	Requests       int
	FailedRequests int
	CacheHits      int
	CacheMisses    int
	Fetches        int
	FailedFetches  int
	RequestLatency time.Duration
}

// Summary gathers the registry into a Summary.
func (m *Metrics) Summary() (Summary, error) {
	s := Summary{Duration: time.Since(m.start)}

	families, err := m.registry.Gather()
	if err != nil {
		return s, err
	}

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := labelMap(metric)
			switch mf.GetName() {
			case namespace + "_session_cache_lookups_total":
				n := int(metric.GetCounter().GetValue())
				if labels["result"] == ResultHit {
					s.CacheHits += n
				} else {
					s.CacheMisses += n
				}
			case namespace + "_session_fetches_total":
				n := int(metric.GetCounter().GetValue())
				s.Fetches += n
				if labels["outcome"] == "error" {
					s.FailedFetches += n
				}
			case namespace + "_http_requests_total":
				n := int(metric.GetCounter().GetValue())
				s.Requests += n
				if status, err := strconv.Atoi(labels["status"]); err != nil || status >= 400 {
					s.FailedRequests += n
				}
			case namespace + "_http_request_duration_seconds":
				s.RequestLatency = time.Duration(metric.GetHistogram().GetSampleSum() * float64(time.Second))
			}
		}
	}
	return s, nil
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

// FormatParts renders the summary as short human-readable fragments.
func (s Summary) FormatParts() []string {
	var parts []string

	if s.Duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", s.Duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", s.Duration.Seconds()))
	}

	switch s.Requests {
	case 0:
	case 1:
		parts = append(parts, "1 request")
	default:
		parts = append(parts, fmt.Sprintf("%d requests", s.Requests))
	}

	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		rate := float64(s.CacheHits) / float64(lookups) * 100
		parts = append(parts, fmt.Sprintf("%d cached (%.0f%%)", s.CacheHits, rate))
	}

	if s.FailedRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.FailedRequests))
	}
	return parts
}

// Map converts the summary for the output envelope meta.
func (s Summary) Map() map[string]any {
	return map[string]any{
		"duration_ms":        s.Duration.Milliseconds(),
		"requests":           s.Requests,
		"failed_requests":    s.FailedRequests,
		"cache_hits":         s.CacheHits,
		"cache_misses":       s.CacheMisses,
		"fetches":            s.Fetches,
		"failed_fetches":     s.FailedFetches,
		"request_latency_ms": s.RequestLatency.Milliseconds(),
	}
}

// SummaryFromMap is the inverse of Map. Numbers may arrive as float64 after
// a JSON round-trip.
func SummaryFromMap(m map[string]any) Summary {
	num := func(key string) int64 {
		switch v := m[key].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		default:
			return 0
		}
	}
	return Summary{
		Duration:       time.Duration(num("duration_ms")) * time.Millisecond,
		Requests:       int(num("requests")),
		FailedRequests: int(num("failed_requests")),
		CacheHits:      int(num("cache_hits")),
		CacheMisses:    int(num("cache_misses")),
		Fetches:        int(num("fetches")),
		FailedFetches:  int(num("failed_fetches")),
		RequestLatency: time.Duration(num("request_latency_ms")) * time.Millisecond,
	}
}
