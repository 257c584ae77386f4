package workflow

import (
	"sort"
	"sync"
	"time"
)

// ExecutionStatus represents the status of a run or of one node in it.
type ExecutionStatus string

const (
	// ExecutionStatusRunning indicates the execution is in progress
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusCompleted indicates the run reached end
	ExecutionStatusCompleted ExecutionStatus = "completed"
	// ExecutionStatusFailed indicates the run reached the error terminal
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// PhaseExecution records the execution of a single node.
type PhaseExecution struct {
	PhaseID   PhaseID         `json:"phase_id"`
	Kind      NodeKind        `json:"kind"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Status    ExecutionStatus `json:"status"`
	Writes    []Slot          `json:"writes,omitempty"`
	Next      PhaseID         `json:"next,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ExecutionHistory records the path a run took through its graph.
type ExecutionHistory struct {
	RunID     string            `json:"run_id"`
	Graph     string            `json:"graph"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Duration  time.Duration     `json:"duration"`
	Status    ExecutionStatus   `json:"status"`
	Phases    []*PhaseExecution `json:"phases"`
	Error     string            `json:"error,omitempty"`
	mu        sync.RWMutex
}

// NewExecutionHistory creates a new execution history
func NewExecutionHistory(runID, graph string) *ExecutionHistory {
	return &ExecutionHistory{
		RunID:     runID,
		Graph:     graph,
		StartTime: time.Now(),
		Status:    ExecutionStatusRunning,
		Phases:    make([]*PhaseExecution, 0),
	}
}

// RecordPhaseStart records the start of a node execution
func (h *ExecutionHistory) RecordPhaseStart(id PhaseID, kind NodeKind) *PhaseExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	pe := &PhaseExecution{
		PhaseID:   id,
		Kind:      kind,
		StartTime: time.Now(),
		Status:    ExecutionStatusRunning,
	}
	h.Phases = append(h.Phases, pe)
	return pe
}

// RecordPhaseEnd records the end of a node execution
func (h *ExecutionHistory) RecordPhaseEnd(pe *PhaseExecution, writes []Slot, next PhaseID, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pe.EndTime = time.Now()
	pe.Duration = pe.EndTime.Sub(pe.StartTime)
	pe.Writes = writes
	pe.Next = next

	if err != nil {
		pe.Status = ExecutionStatusFailed
		pe.Error = err.Error()
	} else {
		pe.Status = ExecutionStatusCompleted
	}
}

// Complete marks the execution as finished
func (h *ExecutionHistory) Complete(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)

	if err != nil {
		h.Status = ExecutionStatusFailed
		h.Error = err.Error()
	} else {
		h.Status = ExecutionStatusCompleted
	}
}

// GetPhases returns a copy of the phase executions
func (h *ExecutionHistory) GetPhases() []*PhaseExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*PhaseExecution, len(h.Phases))
	copy(out, h.Phases)
	return out
}

// GetPhase returns the execution record for a node, or nil.
func (h *ExecutionHistory) GetPhase(id PhaseID) *PhaseExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, pe := range h.Phases {
		if pe.PhaseID == id {
			return pe
		}
	}
	return nil
}

// ExecutionHistoryStore keeps recent run histories in memory.
type ExecutionHistoryStore struct {
	histories map[string]*ExecutionHistory
	order     []string
	limit     int
	mu        sync.RWMutex
}

// NewExecutionHistoryStore creates a store holding at most limit histories.
// limit <= 0 means unbounded.
func NewExecutionHistoryStore(limit int) *ExecutionHistoryStore {
	return &ExecutionHistoryStore{
		histories: make(map[string]*ExecutionHistory),
		limit:     limit,
	}
}

// Save saves an execution history, evicting the oldest when full.
func (s *ExecutionHistoryStore) Save(history *ExecutionHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.histories[history.RunID]; !exists {
		s.order = append(s.order, history.RunID)
	}
	s.histories[history.RunID] = history

	for s.limit > 0 && len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.histories, oldest)
	}
}

// Get retrieves an execution history by run id
func (s *ExecutionHistoryStore) Get(runID string) (*ExecutionHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[runID]
	return h, ok
}

// ListByGraph returns all runs of a graph, oldest first.
func (s *ExecutionHistoryStore) ListByGraph(graph string) []*ExecutionHistory {
	return s.filter(func(h *ExecutionHistory) bool { return h.Graph == graph })
}

// ListByStatus returns runs with a specific status, oldest first.
func (s *ExecutionHistoryStore) ListByStatus(status ExecutionStatus) []*ExecutionHistory {
	return s.filter(func(h *ExecutionHistory) bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.Status == status
	})
}

func (s *ExecutionHistoryStore) filter(keep func(*ExecutionHistory) bool) []*ExecutionHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ExecutionHistory
	for _, id := range s.order {
		if h := s.histories[id]; keep(h) {
			result = append(result, h)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result
}
