package audio

import (
	"errors"
	"io"
	"sync"

	"tabcap/internal/ports"
)

// maxMicBacklog bounds buffered microphone PCM so a stalled mix never
// grows without limit. Oldest samples are dropped first.
const maxMicBacklog = 1 << 20

// GraphConfig describes the PCM format flowing through a mix graph.
type GraphConfig struct {
	SampleRate int
	Channels   int
	// ReadSize is the per-read buffer size in bytes.
	ReadSize int
}

// MixGraph fans captured audio into the recording mix. Tab audio is
// split into a playback path (so the speakers stay live) and the mix;
// microphone audio feeds only the mix. The tab stream paces the output:
// when the microphone lags, the missing samples are silence, never a
// stall. With no tab audio the microphone paces the output directly.
type MixGraph struct {
	cfg  GraphConfig
	sink ports.PlaybackSink

	out  chan []byte
	quit chan struct{}

	micMu   sync.Mutex
	micBuf  []byte
	hasMic  bool
	micDown sync.Once
	onMic   func(error)

	sinkMu   sync.Mutex
	sinkDead bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewMixGraph starts the pump goroutines for the given sources. Either
// source may be nil, but not both. The graph owns the sink and closes
// it on Close; it does not own the sessions, the caller stops those.
func NewMixGraph(cfg GraphConfig, tab ports.AudioSession, mic ports.AudioSession, sink ports.PlaybackSink, onMicDown func(error)) (*MixGraph, error) {
	if tab == nil && mic == nil {
		return nil, errors.New("mix graph needs at least one audio source")
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = 4096
	}
	if onMicDown == nil {
		onMicDown = func(error) {}
	}

	g := &MixGraph{
		cfg:   cfg,
		sink:  sink,
		out:   make(chan []byte, 16),
		quit:  make(chan struct{}),
		onMic: onMicDown,
	}

	if tab != nil {
		if mic != nil {
			g.hasMic = true
			g.wg.Add(1)
			go g.pumpMic(mic)
		}
		g.wg.Add(1)
		go g.pumpMaster(tab, true)
	} else {
		g.wg.Add(1)
		go g.pumpMaster(mic, false)
	}

	go func() {
		g.wg.Wait()
		close(g.out)
	}()

	return g, nil
}

// Output delivers mixed PCM frames. The channel closes once every
// source has ended or the graph is closed.
func (g *MixGraph) Output() <-chan []byte {
	return g.out
}

// Close tears the graph down: pumps stop and the playback sink is
// closed, not suspended. Safe to call more than once.
func (g *MixGraph) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.quit)
		if g.sink != nil {
			err = g.sink.Close()
		}
	})
	return err
}

func (g *MixGraph) pumpMaster(src ports.AudioSession, tee bool) {
	defer g.wg.Done()

	buf := make([]byte, g.cfg.ReadSize)
	for {
		select {
		case <-g.quit:
			return
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			frame := append([]byte(nil), buf[:n]...)
			if tee {
				g.writeSink(frame)
			}
			if g.hasMic {
				mixPCM16(frame, g.takeMic(n))
			}
			select {
			case g.out <- frame:
			case <-g.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (g *MixGraph) pumpMic(src ports.AudioSession) {
	defer g.wg.Done()

	buf := make([]byte, g.cfg.ReadSize)
	for {
		select {
		case <-g.quit:
			return
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			g.micMu.Lock()
			g.micBuf = append(g.micBuf, buf[:n]...)
			if overflow := len(g.micBuf) - maxMicBacklog; overflow > 0 {
				g.micBuf = g.micBuf[overflow:]
			}
			g.micMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				g.micDown.Do(func() { g.onMic(err) })
			}
			return
		}
	}
}

// takeMic drains up to n buffered microphone bytes. A short result
// leaves the tail of the master frame unmixed, which is the silence
// fill for a lagging microphone.
func (g *MixGraph) takeMic(n int) []byte {
	g.micMu.Lock()
	defer g.micMu.Unlock()

	if len(g.micBuf) == 0 {
		return nil
	}
	if n > len(g.micBuf) {
		n = len(g.micBuf)
	}
	taken := g.micBuf[:n]
	g.micBuf = append([]byte(nil), g.micBuf[n:]...)
	return taken
}

// writeSink forwards tab audio to the speakers. Playback failure is
// terminal for the sink only; the recording keeps going.
func (g *MixGraph) writeSink(frame []byte) {
	g.sinkMu.Lock()
	defer g.sinkMu.Unlock()
	if g.sink == nil || g.sinkDead {
		return
	}
	if _, err := g.sink.Write(frame); err != nil {
		g.sinkDead = true
	}
}

// mixPCM16 adds interleaved s16le samples from add into dst with
// saturation. Bytes of dst beyond len(add) are left untouched.
func mixPCM16(dst []byte, add []byte) {
	n := len(dst)
	if len(add) < n {
		n = len(add)
	}
	for i := 0; i+1 < n; i += 2 {
		a := int16(uint16(dst[i]) | uint16(dst[i+1])<<8)
		b := int16(uint16(add[i]) | uint16(add[i+1])<<8)
		sum := int32(a) + int32(b)
		if sum > 32767 {
			sum = 32767
		}
		if sum < -32768 {
			sum = -32768
		}
		dst[i] = byte(uint16(sum))
		dst[i+1] = byte(uint16(sum) >> 8)
	}
}
