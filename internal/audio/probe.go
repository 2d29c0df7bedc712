package audio

import (
	"context"
	"time"

	"tabcap/internal/ports"
)

// probeTimeout caps how long a microphone probe waits for first audio.
const probeTimeout = 3 * time.Second

// ProbeMicrophone opens a short capture session on the configured
// source and reports whether audio flows. A source that cannot be
// opened is denied; one that opens but stays silent past the timeout
// is undetermined, because a stalled sound server looks the same as a
// revoked device.
func (c *FFMPEGCapture) ProbeMicrophone(ctx context.Context, cfg ports.AudioConfig) ports.MicAccess {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	session, err := c.Start(probeCtx, cfg)
	if err != nil {
		return ports.MicAccessDenied
	}
	defer func() { _ = session.Stop() }()

	result := make(chan ports.MicAccess, 1)
	go func() {
		buf := make([]byte, 4096)
		n, err := session.Read(buf)
		switch {
		case n > 0:
			result <- ports.MicAccessGranted
		case err != nil:
			result <- ports.MicAccessDenied
		default:
			result <- ports.MicAccessUndetermined
		}
	}()

	select {
	case access := <-result:
		if probeCtx.Err() != nil {
			return ports.MicAccessUndetermined
		}
		return access
	case <-probeCtx.Done():
		return ports.MicAccessUndetermined
	}
}
