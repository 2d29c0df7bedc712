package cli

import (
	"fmt"
	"io"
	"sync"

	"tabcap/internal/domain"
)

// ConsoleEvents prints recording lifecycle events to the terminal and
// closes Done once the recording reaches a terminal phase.
type ConsoleEvents struct {
	mu     sync.Mutex
	w      io.Writer
	failed bool

	done chan struct{}
	once sync.Once
}

func NewConsoleEvents(w io.Writer) *ConsoleEvents {
	return &ConsoleEvents{w: w, done: make(chan struct{})}
}

// Done is closed when the recording completes or fails.
func (e *ConsoleEvents) Done() <-chan struct{} {
	return e.done
}

// Failed reports whether the recording ended in failure.
func (e *ConsoleEvents) Failed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failed
}

func (e *ConsoleEvents) RecordingStateChanged(state domain.RecordingState) {
	switch state.Phase {
	case domain.PhaseRecording:
		e.printf("🔴 Recording (Ctrl+C to stop)")
	case domain.PhaseStopping:
		e.printf("⏹️  Finalizing recording...")
	}
}

func (e *ConsoleEvents) MicrophoneFailed(detail string) {
	e.printf("⚠️  Microphone unavailable, continuing without it: %s", detail)
}

func (e *ConsoleEvents) MemoryWarning(totalBytes int64) {
	e.printf("⚠️  Buffered recording data reached %d MB", totalBytes/(1<<20))
}

func (e *ConsoleEvents) StreamsReleased() {}

func (e *ConsoleEvents) RecordingComplete(artifact domain.RecordingArtifact) {
	e.printf("✅ Recording saved: %s", artifact.Video.Path)
	if artifact.Audio != nil {
		e.printf("✅ Audio track saved: %s", artifact.Audio.Path)
	}
	e.once.Do(func() { close(e.done) })
}

func (e *ConsoleEvents) RecordingFailed(code domain.ErrorCode, detail string) {
	e.printf("❌ Recording failed (%s): %s", code, detail)
	e.mu.Lock()
	e.failed = true
	e.mu.Unlock()
	e.once.Do(func() { close(e.done) })
}

func (e *ConsoleEvents) printf(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, format+"\n", args...)
}
