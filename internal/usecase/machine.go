package usecase

import (
	"fmt"
	"sync"
	"time"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// stateMachine guards the recording lifecycle. Every phase change goes
// through it, so listeners never observe a skipped phase, and start or
// stop requests that arrive in the wrong phase are rejected here.
type stateMachine struct {
	events ports.RecordingEvents

	mu    sync.Mutex
	state domain.RecordingState
}

func newStateMachine(events ports.RecordingEvents) *stateMachine {
	return &stateMachine{
		events: events,
		state:  domain.RecordingState{Phase: domain.PhaseIdle},
	}
}

func transitionAllowed(from, to domain.RecordingPhase) bool {
	switch from {
	case domain.PhaseIdle:
		return to == domain.PhaseStarting
	case domain.PhaseStarting:
		return to == domain.PhaseRecording || to == domain.PhaseError
	case domain.PhaseRecording:
		return to == domain.PhaseStopping || to == domain.PhaseError
	case domain.PhaseStopping:
		return to == domain.PhaseComplete || to == domain.PhaseError
	case domain.PhaseComplete, domain.PhaseError:
		return to == domain.PhaseStarting || to == domain.PhaseIdle
	default:
		return false
	}
}

// Snapshot returns a copy of the externally visible state.
func (m *stateMachine) Snapshot() domain.RecordingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Begin claims the machine for a new recording. A recording already in
// flight rejects the claim; a finished one is replaced and its kept
// artifact reference dropped.
func (m *stateMachine) Begin(opts domain.RecordingOptions) error {
	m.mu.Lock()
	switch m.state.Phase {
	case domain.PhaseStarting, domain.PhaseRecording, domain.PhaseStopping:
		m.mu.Unlock()
		return domain.NewError(domain.ErrorCodeAlreadyRecording, "a recording is already in progress")
	}

	m.state = domain.RecordingState{
		Phase:         domain.PhaseStarting,
		RecordingType: opts.RecordingType,
		CurrentTabID:  opts.TargetTabID,
	}
	snapshot := m.state
	m.mu.Unlock()

	m.events.RecordingStateChanged(snapshot)
	return nil
}

// MarkRecording moves Starting to Recording once all streams and
// encoders are live.
func (m *stateMachine) MarkRecording(tabID string, startedAt time.Time) error {
	m.mu.Lock()
	if !transitionAllowed(m.state.Phase, domain.PhaseRecording) {
		phase := m.state.Phase
		m.mu.Unlock()
		return fmt.Errorf("cannot enter recording from %s", phase)
	}

	m.state.Phase = domain.PhaseRecording
	m.state.IsRecording = true
	m.state.CurrentTabID = tabID
	m.state.StartedAt = &startedAt
	snapshot := m.state
	m.mu.Unlock()

	m.events.RecordingStateChanged(snapshot)
	return nil
}

// MarkStopping claims the stop. Exactly one caller wins when a user
// stop races the natural end of the stream.
func (m *stateMachine) MarkStopping() error {
	m.mu.Lock()
	if m.state.Phase != domain.PhaseRecording {
		m.mu.Unlock()
		return domain.NewError(domain.ErrorCodeNoRecording, "no recording in progress")
	}

	m.state.Phase = domain.PhaseStopping
	m.state.IsRecording = false
	snapshot := m.state
	m.mu.Unlock()

	m.events.RecordingStateChanged(snapshot)
	return nil
}

// Complete attaches the finished artifact. It stays visible until the
// next recording begins.
func (m *stateMachine) Complete(artifact *domain.RecordingArtifact) error {
	m.mu.Lock()
	if !transitionAllowed(m.state.Phase, domain.PhaseComplete) {
		phase := m.state.Phase
		m.mu.Unlock()
		return fmt.Errorf("cannot complete from %s", phase)
	}

	m.state.Phase = domain.PhaseComplete
	m.state.IsRecording = false
	m.state.StartedAt = nil
	m.state.Recording = artifact
	snapshot := m.state
	m.mu.Unlock()

	m.events.RecordingStateChanged(snapshot)
	return nil
}

// Fail moves any in-flight phase to Error. Failing twice, or failing
// after completion, keeps the first outcome.
func (m *stateMachine) Fail() bool {
	m.mu.Lock()
	if !transitionAllowed(m.state.Phase, domain.PhaseError) {
		m.mu.Unlock()
		return false
	}

	m.state.Phase = domain.PhaseError
	m.state.IsRecording = false
	m.state.StartedAt = nil
	snapshot := m.state
	m.mu.Unlock()

	m.events.RecordingStateChanged(snapshot)
	return true
}

// Reset returns a settled machine to Idle. A kept artifact survives so
// the last recording stays retrievable.
func (m *stateMachine) Reset() error {
	m.mu.Lock()
	if !transitionAllowed(m.state.Phase, domain.PhaseIdle) {
		phase := m.state.Phase
		m.mu.Unlock()
		return fmt.Errorf("cannot reset from %s", phase)
	}

	m.state.Phase = domain.PhaseIdle
	m.state.IsRecording = false
	m.state.CurrentTabID = ""
	m.state.StartedAt = nil
	snapshot := m.state
	m.mu.Unlock()

	m.events.RecordingStateChanged(snapshot)
	return nil
}
