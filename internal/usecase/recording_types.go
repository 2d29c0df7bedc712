package usecase

import (
	"context"
	"sync"
	"time"

	"tabcap/internal/audio"
	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// activeRecording owns everything a live recording runs on: the
// acquired streams, the mix graph, both encoder sessions and their
// accumulators, and the done channels the teardown drains.
type activeRecording struct {
	id        string
	opts      domain.RecordingOptions
	tab       domain.Tab
	startedAt time.Time
	workDir   string

	cancel  context.CancelFunc
	streams *acquiredStreams
	graph   *audio.MixGraph

	combined     ports.EncoderSession
	combinedMime string
	combinedAcc  *blobAccumulator

	audioOnly ports.EncoderSession
	audioMime string
	audioAcc  *blobAccumulator

	frameDone          chan struct{}
	mixDone            chan struct{}
	combinedChunksDone chan struct{}
	audioChunksDone    chan struct{}

	releaseOnce sync.Once
	failOnce    sync.Once

	failMu  sync.Mutex
	failure error
}

func (a *activeRecording) setFailure(err error) {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	if a.failure == nil {
		a.failure = err
	}
}

// failureOr returns the recorded terminal failure, or fallback when the
// recording never failed.
func (a *activeRecording) failureOr(fallback error) error {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	if a.failure != nil {
		return a.failure
	}
	return fallback
}

// firstEncoderErr reports the first terminal encoder error. Valid once
// both chunk channels are closed.
func (a *activeRecording) firstEncoderErr() error {
	if err := a.combined.Err(); err != nil {
		return err
	}
	if a.audioOnly != nil {
		if err := a.audioOnly.Err(); err != nil {
			return err
		}
	}
	return nil
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
