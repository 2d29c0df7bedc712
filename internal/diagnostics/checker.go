package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tabcap/internal/config"
	"tabcap/internal/domain"
	"tabcap/internal/ports"
)

// Checker validates the recorder's environment: the encoder binary,
// the browser DevTools endpoint, the microphone, the output directory,
// and the saved sign-in session.
type Checker struct {
	lookPath     func(string) (string, error)
	mkdirAll     func(string, os.FileMode) error
	createTemp   func(string, string) (*os.File, error)
	remove       func(string) error
	probeBrowser func(context.Context) (string, error)
	probeMic     func(context.Context) ports.MicAccess
	authState    func() domain.AuthState
}

// NewChecker builds a checker using real OS dependencies. probeBrowser
// should return a human-readable browser version; probeMic reports
// microphone availability; authState reports the current sign-in state.
func NewChecker(
	probeBrowser func(context.Context) (string, error),
	probeMic func(context.Context) ports.MicAccess,
	authState func() domain.AuthState,
) *Checker {
	return &Checker{
		lookPath:     exec.LookPath,
		mkdirAll:     os.MkdirAll,
		createTemp:   os.CreateTemp,
		remove:       os.Remove,
		probeBrowser: probeBrowser,
		probeMic:     probeMic,
		authState:    authState,
	}
}

// Run executes all environment checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, cfg config.Config) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkEncoder(cfg.Recording.FFmpegCommand),
		c.checkBrowser(ctx, cfg.Browser.DebugURL),
		c.checkMicrophone(ctx),
		c.checkOutputDir(cfg.Recording.OutputDir),
		c.checkSession(),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

func (c *Checker) checkEncoder(command string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "encoder",
		Name: "Encoder",
	}

	if strings.TrimSpace(command) == "" {
		command = "ffmpeg"
	}

	path, err := c.lookPath(command)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Encoder not found in PATH: %s", command)
		item.Hint = "Install ffmpeg or set TABCAP_FFMPEG_COMMAND to the binary. Recordings fall back to AVI/WAV without it."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

func (c *Checker) checkBrowser(ctx context.Context, debugURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "browser",
		Name: "Browser DevTools",
	}

	if c.probeBrowser == nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No browser probe configured."
		return item
	}

	version, err := c.probeBrowser(ctx)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("DevTools endpoint unreachable: %s", debugURL)
		item.Hint = "Start the browser with --remote-debugging-port=9222 or set TABCAP_BROWSER_URL."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Connected to %s", version)
	return item
}

// checkMicrophone is advisory: recordings proceed tab-only without a
// microphone, so anything short of granted is a warning, not a failure.
func (c *Checker) checkMicrophone(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "microphone",
		Name: "Microphone",
	}

	if c.probeMic == nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No microphone probe configured."
		return item
	}

	switch c.probeMic(ctx) {
	case ports.MicAccessGranted:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Microphone capture works."
	case ports.MicAccessDenied:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Microphone could not be opened."
		item.Hint = "Recordings proceed without the microphone. Check the input device or set TABCAP_MIC_SOURCE."
	default:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Microphone produced no audio within the probe window."
		item.Hint = "The device may be muted or held by another application."
	}
	return item
}

func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set recording.output_dir or TABCAP_OUTPUT_DIR to a writable location."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for recordings."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

func (c *Checker) checkSession() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "session",
		Name: "Sign-in session",
	}

	if c.authState == nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Sign-in state unavailable."
		return item
	}

	state := c.authState()
	if state.Phase != domain.AuthPhaseSignedIn {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Not signed in."
		item.Hint = "Sign in with your phone number before uploading recordings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	if state.Profile != nil && state.Profile.Name != "" {
		item.Message = fmt.Sprintf("Signed in as %s", state.Profile.Name)
	} else {
		item.Message = "Signed in."
	}
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	probeBrowser func(context.Context) (string, error),
	probeMic func(context.Context) ports.MicAccess,
	authState func() domain.AuthState,
) *Checker {
	return &Checker{
		lookPath:     lookPath,
		mkdirAll:     mkdirAll,
		createTemp:   createTemp,
		remove:       remove,
		probeBrowser: probeBrowser,
		probeMic:     probeMic,
		authState:    authState,
	}
}
