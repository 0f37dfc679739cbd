// Package profile defines the adaptive per-host collaborator the
// orchestrator consults to decide strategy order and to learn from
// outcomes over repeated runs against the same host.
package profile

import (
	"math"
	"sort"
	"sync"
)

// defaultStrategyOrder is used for a host with no recorded history.
var defaultStrategyOrder = []string{
	"javascript", "ajax", "html_parsing", "browser_automation", "api_reverse",
}

// emaAlpha is the exponential-moving-average smoothing factor applied to
// both success rate and response time on every Update call.
const emaAlpha = 0.1

// maxRetainedSelectors bounds how many learned selectors a host profile
// keeps, ranked by success rate.
const maxRetainedSelectors = 20

// Profile is the narrow collaborator interface consulted by the
// orchestrator. Implementations must be safe for concurrent use, since a
// single process may run several listing resolutions against different
// hosts concurrently.
type Profile interface {
	// OptimalOrder returns the strategy names to try, in the order this
	// host has historically responded to best.
	OptimalOrder(host string) []string

	// Update records the outcome of attempting strategy on host: whether
	// it succeeded and how long it took.
	Update(host, strategy string, success bool, elapsedMillis float64)

	// LearnedSelectors returns the CSS selectors previously recorded as
	// successful content selectors for host, most successful first.
	LearnedSelectors(host string) []string
}

type hostState struct {
	successRate   map[string]float64
	avgResponseMs map[string]float64
	selectors     map[string]float64 // selector -> success rate
}

func newHostState() *hostState {
	return &hostState{
		successRate:   make(map[string]float64),
		avgResponseMs: make(map[string]float64),
		selectors:     make(map[string]float64),
	}
}

// InMemoryProfile is the reference Profile implementation: per-host state
// held in memory for the lifetime of the process, with no persistence.
type InMemoryProfile struct {
	mu    sync.Mutex
	hosts map[string]*hostState
}

// NewInMemoryProfile returns an empty InMemoryProfile.
func NewInMemoryProfile() *InMemoryProfile {
	return &InMemoryProfile{hosts: make(map[string]*hostState)}
}

var _ Profile = (*InMemoryProfile)(nil)

func (p *InMemoryProfile) stateFor(host string) *hostState {
	st, ok := p.hosts[host]
	if !ok {
		st = newHostState()
		p.hosts[host] = st
	}
	return st
}

// OptimalOrder scores each strategy as successRate / log(avgTime+1),
// highest score first, ties broken by lower average response time. A
// strategy with no recorded attempts is scored using the default order's
// position as a tiebreaker and placed after any scored strategy.
func (p *InMemoryProfile) OptimalOrder(host string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.hosts[host]
	if !ok {
		out := make([]string, len(defaultStrategyOrder))
		copy(out, defaultStrategyOrder)
		return out
	}

	type scored struct {
		name  string
		score float64
		time  float64
		seen  bool
	}

	all := make([]scored, 0, len(defaultStrategyOrder))
	for _, name := range defaultStrategyOrder {
		rate, seen := st.successRate[name]
		avgTime := st.avgResponseMs[name]
		s := scored{name: name, time: avgTime, seen: seen}
		if seen {
			s.score = rate / logPlusOne(avgTime)
		}
		all = append(all, s)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].seen != all[j].seen {
			return all[i].seen
		}
		if !all[i].seen {
			return false
		}
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].time < all[j].time
	})

	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.name
	}
	return out
}

// Update applies the EMA formula to both the success rate and the
// response-time estimate for (host, strategy).
func (p *InMemoryProfile) Update(host, strategy string, success bool, elapsedMillis float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.stateFor(host)

	outcome := 0.0
	if success {
		outcome = 1.0
	}

	prevRate, hadRate := st.successRate[strategy]
	if !hadRate {
		st.successRate[strategy] = outcome
	} else {
		st.successRate[strategy] = prevRate*(1-emaAlpha) + outcome*emaAlpha
	}

	prevTime, hadTime := st.avgResponseMs[strategy]
	if !hadTime {
		st.avgResponseMs[strategy] = elapsedMillis
	} else {
		st.avgResponseMs[strategy] = prevTime*(1-emaAlpha) + elapsedMillis*emaAlpha
	}
}

// AddSelector records a successful (or unsuccessful) content-selector
// observation for host, EMA-updating the existing rate if the selector
// was seen before, then trims to the top maxRetainedSelectors by rate.
func (p *InMemoryProfile) AddSelector(host, selector string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.stateFor(host)

	outcome := 0.0
	if success {
		outcome = 1.0
	}

	prev, had := st.selectors[selector]
	if !had {
		st.selectors[selector] = outcome
	} else {
		st.selectors[selector] = prev*(1-emaAlpha) + outcome*emaAlpha
	}

	if len(st.selectors) <= maxRetainedSelectors {
		return
	}

	type kv struct {
		key  string
		rate float64
	}
	ranked := make([]kv, 0, len(st.selectors))
	for k, v := range st.selectors {
		ranked = append(ranked, kv{k, v})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].rate > ranked[j].rate })

	trimmed := make(map[string]float64, maxRetainedSelectors)
	for _, r := range ranked[:maxRetainedSelectors] {
		trimmed[r.key] = r.rate
	}
	st.selectors = trimmed
}

// LearnedSelectors returns selectors for host ordered by descending
// success rate.
func (p *InMemoryProfile) LearnedSelectors(host string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.hosts[host]
	if !ok {
		return nil
	}

	type kv struct {
		key  string
		rate float64
	}
	ranked := make([]kv, 0, len(st.selectors))
	for k, v := range st.selectors {
		ranked = append(ranked, kv{k, v})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].rate > ranked[j].rate })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.key
	}
	return out
}

// logPlusOne avoids a zero-division / -Inf blowup for a strategy whose
// recorded average time is exactly zero.
func logPlusOne(x float64) float64 {
	if x <= 0 {
		x = 1
	}
	return math.Log(x + 1)
}
