package devtools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// ScreencastSource captures tab video over the page's debugger
// websocket. Frames arrive as JPEG images which the encoder consumes
// directly; every frame is acknowledged so the browser keeps sending.
type ScreencastSource struct {
	dialer *websocket.Dialer
}

func NewScreencastSource() *ScreencastSource {
	return &ScreencastSource{dialer: websocket.DefaultDialer}
}

func (s *ScreencastSource) Start(ctx context.Context, tab domain.Tab, cfg ports.VideoConfig) (ports.VideoSession, error) {
	if tab.WebSocketDebuggerURL == "" {
		return nil, errors.New("tab exposes no debugger websocket")
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 80
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = domain.Quality1080p.Dimensions()
	}

	conn, _, err := s.dialer.DialContext(ctx, tab.WebSocketDebuggerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tab debugger: %w", err)
	}

	session := &screencastSession{
		conn:   conn,
		frames: make(chan domain.VideoFrame, 32),
		done:   make(chan struct{}),
	}

	session.wg.Add(1)
	go session.readLoop()
	go func() {
		session.wg.Wait()
		close(session.frames)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	if err := session.command("Page.enable", nil); err != nil {
		_ = session.Close()
		return nil, err
	}
	err = session.command("Page.startScreencast", startScreencastParams{
		Format:        "jpeg",
		Quality:       cfg.Quality,
		MaxWidth:      cfg.Width,
		MaxHeight:     cfg.Height,
		EveryNthFrame: 1,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	return session, nil
}

type screencastSession struct {
	conn *websocket.Conn

	frames chan domain.VideoFrame
	done   chan struct{}

	wg     sync.WaitGroup
	nextID atomic.Int64

	errMu sync.Mutex
	err   error

	closeOnce  sync.Once
	writeMu    sync.Mutex
	sendClosed bool
}

func (s *screencastSession) Frames() <-chan domain.VideoFrame {
	return s.frames
}

func (s *screencastSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *screencastSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.command("Page.stopScreencast", nil)

		s.writeMu.Lock()
		s.sendClosed = true
		s.writeMu.Unlock()

		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

// command marshals and writes one protocol request. Writes are
// serialized; the websocket allows a single concurrent writer.
func (s *screencastSession) command(method string, params any) error {
	payload, err := json.Marshal(rpcRequest{
		ID:     s.nextID.Add(1),
		Method: method,
		Params: params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", method, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.sendClosed {
		return errors.New("screencast session is closed")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.setErr(fmt.Errorf("failed to send %s: %w", method, err))
		return err
	}
	return nil
}

func (s *screencastSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}

		var message rpcMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}

		if message.Error != nil {
			s.setErr(fmt.Errorf("debugger rejected command: %s", message.Error.Message))
			return
		}

		switch message.Method {
		case "Page.screencastFrame":
			var frame screencastFrameParams
			if err := json.Unmarshal(message.Params, &frame); err != nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(frame.Data)
			if err != nil {
				continue
			}
			s.emit(domain.VideoFrame{Data: data, CapturedAt: frameTime(frame.Metadata.Timestamp)})
			_ = s.command("Page.screencastFrameAck", ackParams{SessionID: frame.SessionID})

		case "Inspector.detached":
			// The page went away; a clean end of capture.
			return
		}
	}
}

// emit drops frames under backpressure; screencast frames are
// independently decodable and the ack was already sent.
func (s *screencastSession) emit(frame domain.VideoFrame) {
	select {
	case s.frames <- frame:
	case <-s.done:
	default:
	}
}

func (s *screencastSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first terminal error. Close handshakes, the
// abrupt socket drop of a closing tab, and our own Close tearing the
// connection down are a clean capture end, not failures.
func (s *screencastSession) setErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func frameTime(timestamp float64) time.Time {
	if timestamp <= 0 {
		return time.Now()
	}
	sec, frac := math.Modf(timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type startScreencastParams struct {
	Format        string `json:"format"`
	Quality       int    `json:"quality"`
	MaxWidth      int    `json:"maxWidth"`
	MaxHeight     int    `json:"maxHeight"`
	EveryNthFrame int    `json:"everyNthFrame"`
}

type ackParams struct {
	SessionID int `json:"sessionId"`
}

type screencastFrameParams struct {
	Data      string `json:"data"`
	SessionID int    `json:"sessionId"`
	Metadata  struct {
		Timestamp float64 `json:"timestamp"`
	} `json:"metadata"`
}
