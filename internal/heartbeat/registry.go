package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"
	StateIdle     = "idle"
)

// Reporter is implemented by Registry and handed to long-running components.
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	Beats          int64  `json:"beats"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type component struct {
	state      string
	message    string
	lastError  string
	beats      int64
	lastBeatAt time.Time
	updatedAt  time.Time
}

type Registry struct {
	mu         sync.RWMutex
	now        func() time.Time
	components map[string]*component
}

func NewRegistry() *Registry {
	return &Registry{
		now:        func() time.Time { return time.Now().UTC() },
		components: map[string]*component{},
	}
}

func (r *Registry) Starting(name, message string) {
	r.update(name, StateStarting, message, nil, false)
}

// Beat marks a component healthy and refreshes its staleness clock.
func (r *Registry) Beat(name, message string) {
	r.update(name, StateHealthy, message, nil, true)
}

func (r *Registry) Degrade(name, message string, err error) {
	r.update(name, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(name, message string) {
	r.update(name, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(name, message string) {
	r.update(name, StateStopped, message, nil, false)
}

func (r *Registry) update(name, state, message string, err error, beat bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.components[key]
	if !ok {
		record = &component{lastBeatAt: now}
		r.components[key] = record
	}
	record.state = state
	record.message = strings.TrimSpace(message)
	record.lastError = ""
	if err != nil {
		record.lastError = strings.TrimSpace(err.Error())
	}
	record.updatedAt = now
	if beat {
		record.beats++
		record.lastBeatAt = now
	}
}

// Snapshot reports every component; healthy or starting components that
// have not beaten within staleAfter are reported stale.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]ComponentStatus, 0, len(r.components))
	for name, record := range r.components {
		status := ComponentStatus{
			Name:           name,
			State:          record.state,
			BaseState:      record.state,
			Message:        record.message,
			Error:          record.lastError,
			Beats:          record.beats,
			LastBeatAtUnix: record.lastBeatAt.Unix(),
			UpdatedAtUnix:  record.updatedAt.Unix(),
		}
		canStale := record.state == StateHealthy || record.state == StateStarting
		if staleAfter > 0 && canStale && now.Sub(record.lastBeatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		results = append(results, status)
	}
	sort.Slice(results, func(left, right int) bool {
		return results[left].Name < results[right].Name
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(results),
		Components:      results,
	}
}

func IsDegradedState(state string) bool {
	return state == StateDegraded || state == StateStale
}

func overall(items []ComponentStatus) string {
	if len(items) == 0 {
		return "unknown"
	}
	starting := false
	active := false
	for _, item := range items {
		switch item.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			starting = true
			active = true
		case StateHealthy:
			active = true
		}
	}
	switch {
	case starting:
		return StateStarting
	case active:
		return StateHealthy
	default:
		return StateIdle
	}
}
