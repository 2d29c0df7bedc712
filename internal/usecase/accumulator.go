package usecase

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	// flushThreshold is how many buffered bytes trigger a spill to disk.
	flushThreshold = 50 << 20
	// warnThreshold is the recording size that raises the one memory
	// pressure warning.
	warnThreshold = 100 << 20
)

// blobAccumulator collects encoder chunks in arrival order. Buffered
// bytes spill to numbered piece files once they reach the flush
// threshold, and Finalize stitches pieces plus the buffered tail into
// the artifact file, byte for byte in append order.
type blobAccumulator struct {
	dir    string
	label  string
	onWarn func(total int64)

	flushAt int
	warnAt  int64

	mu       sync.Mutex
	pending  [][]byte
	buffered int
	pieces   []string
	total    int64
	warned   bool
}

func newBlobAccumulator(dir, label string, onWarn func(int64)) *blobAccumulator {
	if onWarn == nil {
		onWarn = func(int64) {}
	}
	return &blobAccumulator{
		dir:     dir,
		label:   label,
		onWarn:  onWarn,
		flushAt: flushThreshold,
		warnAt:  warnThreshold,
	}
}

// Append adds one chunk. The accumulator owns the slice afterwards.
func (a *blobAccumulator) Append(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	a.mu.Lock()
	a.pending = append(a.pending, chunk)
	a.buffered += len(chunk)
	a.total += int64(len(chunk))

	warn := false
	if !a.warned && a.total >= a.warnAt {
		a.warned = true
		warn = true
	}
	total := a.total

	var err error
	if a.buffered >= a.flushAt {
		err = a.spillLocked()
	}
	a.mu.Unlock()

	if warn {
		a.onWarn(total)
	}
	return err
}

func (a *blobAccumulator) spillLocked() error {
	path := filepath.Join(a.dir, fmt.Sprintf("%s-%03d.part", a.label, len(a.pieces)))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create piece file: %w", err)
	}
	for _, chunk := range a.pending {
		if _, err := f.Write(chunk); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return fmt.Errorf("failed to spill chunks: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close piece file: %w", err)
	}

	a.pieces = append(a.pieces, path)
	a.pending = nil
	a.buffered = 0
	return nil
}

// Total returns the byte count appended so far.
func (a *blobAccumulator) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Finalize writes the complete artifact to path and removes the piece
// files. The result reproduces every appended chunk in order.
func (a *blobAccumulator) Finalize(path string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	var written int64
	for _, piece := range a.pieces {
		n, err := appendFile(out, piece)
		written += n
		if err != nil {
			_ = out.Close()
			_ = os.Remove(path)
			return 0, err
		}
	}
	for _, chunk := range a.pending {
		n, err := out.Write(chunk)
		written += int64(n)
		if err != nil {
			_ = out.Close()
			_ = os.Remove(path)
			return 0, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}

	for _, piece := range a.pieces {
		_ = os.Remove(piece)
	}
	a.pieces = nil
	a.pending = nil
	a.buffered = 0
	return written, nil
}

// Discard drops buffered chunks and removes piece files after a failed
// recording.
func (a *blobAccumulator) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, piece := range a.pieces {
		_ = os.Remove(piece)
	}
	a.pieces = nil
	a.pending = nil
	a.buffered = 0
}

func appendFile(out *os.File, path string) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open piece %s: %w", path, err)
	}
	defer in.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return n, fmt.Errorf("failed to copy piece %s: %w", path, err)
	}
	return n, nil
}
