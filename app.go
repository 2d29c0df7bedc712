package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"tabcap/internal/auth"
	"tabcap/internal/bootstrap"
	"tabcap/internal/config"
	"tabcap/internal/diagnostics"
	"tabcap/internal/domain"
	"tabcap/internal/hotkey"
	"tabcap/internal/meet"
	"tabcap/internal/notify"
	"tabcap/internal/ports"
	"tabcap/internal/upload"
	"tabcap/internal/usecase"
	"tabcap/internal/version"
)

const (
	eventRecordingState    = "tabcap:recordingState"
	eventMicFailure        = "tabcap:micFailure"
	eventMemoryWarning     = "tabcap:memoryWarning"
	eventStreamsReleased   = "tabcap:streamsReleased"
	eventRecordingComplete = "tabcap:recordingComplete"
	eventRecordingFailed   = "tabcap:recordingFailed"
	eventMeetingDetected   = "tabcap:meetingDetected"
	eventMeetingEnded      = "tabcap:meetingEnded"
	eventAuthState         = "tabcap:authState"
	eventUploadComplete    = "tabcap:uploadComplete"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	cfg        config.Config
	tabs       ports.TabDirectory
	controller *usecase.RecordingController
	auth       *auth.Manager
	uploader   *upload.Uploader
	watcher    *meet.Watcher
	checker    *diagnostics.Checker
	notifier   *notify.Desktop
	bootErr    error

	cancelBg context.CancelFunc

	mu           sync.Mutex
	lastArtifact *domain.RecordingArtifact
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(bootstrap.Sinks{Recording: a, Meetings: a, Auth: a})
	if err != nil {
		a.bootErr = err
		a.RecordingFailed(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.tabs = services.Tabs
	a.controller = services.Controller
	a.auth = services.Auth
	a.uploader = services.Uploader
	a.watcher = services.Watcher
	a.checker = services.Checker
	a.notifier = services.Notifier

	bg, cancel := context.WithCancel(context.Background())
	a.cancelBg = cancel
	go func() { _ = a.watcher.Run(bg) }()
	go func() { _ = a.auth.RunRefresh(bg) }()
	go func() { _ = hotkey.New(a.cfg.Hotkey.Toggle, a.toggleRecording).Run(bg) }()

	a.RecordingStateChanged(a.controller.State())
	a.AuthStateChanged(a.auth.State())
}

func (a *App) shutdown(ctx context.Context) {
	if a.cancelBg != nil {
		a.cancelBg()
	}
	if a.controller != nil {
		// Finalize any in-flight recording instead of losing it.
		_, _ = a.controller.Stop(context.Background())
	}
}

// StartRecording begins capturing the requested tab.
func (a *App) StartRecording(opts domain.RecordingOptions) (domain.StartResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StartResult{}, err
	}
	return a.controller.Start(a.ctx, opts)
}

// StopRecording finalizes the active recording and returns the artifact.
func (a *App) StopRecording() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.controller.Stop(a.ctx)
}

// GetRecordingState returns the current recording snapshot.
func (a *App) GetRecordingState() domain.RecordingState {
	if a.controller == nil {
		return domain.RecordingState{Phase: domain.PhaseIdle}
	}
	return a.controller.State()
}

// ListTabs returns the capturable browser tabs.
func (a *App) ListTabs() ([]domain.Tab, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.tabs.List(a.ctx)
}

// ActiveMeetings returns the conference tabs currently tracked.
func (a *App) ActiveMeetings() []domain.Meeting {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Active()
}

// RequestLoginCode asks the backend to text a sign-in code.
func (a *App) RequestLoginCode(phone string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.auth.RequestCode(a.ctx, phone)
}

// VerifyLoginCode exchanges the texted code for a session.
func (a *App) VerifyLoginCode(phone string, code string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.auth.VerifyCode(a.ctx, phone, code)
}

// GetAuthState returns the current sign-in snapshot.
func (a *App) GetAuthState() domain.AuthState {
	if a.auth == nil {
		return domain.AuthState{Phase: domain.AuthPhaseSignedOut}
	}
	return a.auth.State()
}

// Logout clears the saved session.
func (a *App) Logout() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.auth.Logout()
}

// UploadLastRecording sends the most recent finished recording to the
// storage service. The storage key lands on the clipboard so it can be
// pasted straight into a share message.
func (a *App) UploadLastRecording() (domain.UploadResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.UploadResult{}, err
	}

	a.mu.Lock()
	artifact := a.lastArtifact
	a.mu.Unlock()
	if artifact == nil {
		return domain.UploadResult{}, domain.NewError(domain.ErrorCodeNoRecording, "no finished recording to upload")
	}

	result, err := a.uploader.Upload(a.ctx, *artifact)
	if err != nil {
		return domain.UploadResult{}, err
	}

	a.emit(eventUploadComplete, result)
	if a.ctx != nil {
		_ = runtime.ClipboardSetText(a.ctx, result.StorageKey)
	}
	a.notifier.Notify("Upload complete", result.StorageKey)
	return result, nil
}

// SaveRecordingAs copies the most recent recording to a location picked
// in the native save dialog. An empty path means the user canceled.
func (a *App) SaveRecordingAs() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}

	a.mu.Lock()
	artifact := a.lastArtifact
	a.mu.Unlock()
	if artifact == nil {
		return "", domain.NewError(domain.ErrorCodeNoRecording, "no finished recording to save")
	}

	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Save recording",
		DefaultFilename: artifact.Video.Filename,
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}

	if err := copyFile(artifact.Video.Path, path); err != nil {
		return "", fmt.Errorf("failed to save recording: %w", err)
	}
	return path, nil
}

// GetDiagnostics runs the environment checks.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	if a.checker == nil {
		report := domain.DiagnosticReport{HasFailures: true}
		if a.bootErr != nil {
			report.Items = []domain.DiagnosticItem{{
				ID:      "startup",
				Name:    "Startup",
				Status:  domain.DiagnosticStatusFail,
				Message: a.bootErr.Error(),
			}}
		}
		return report
	}
	return a.checker.Run(a.ctx, a.cfg)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"version":      version.Full(),
		"browserURL":   a.cfg.Browser.DebugURL,
		"outputDir":    a.cfg.Recording.OutputDir,
		"serviceURL":   a.cfg.Service.BaseURL,
		"deviceSource": a.cfg.Audio.DeviceSource,
		"micSource":    a.cfg.Audio.MicSource,
	}
}

// toggleRecording is the global hotkey action: stop when a recording is
// active, otherwise record the focused tab with tab audio.
func (a *App) toggleRecording() {
	state := a.controller.State()
	if state.IsRecording || state.Phase == domain.PhaseStarting {
		go func() { _, _ = a.controller.Stop(a.ctx) }()
		return
	}
	go func() {
		_, _ = a.controller.Start(a.ctx, domain.RecordingOptions{
			RecordingType:      domain.RecordingTypeTab,
			IncludeDeviceAudio: true,
		})
	}()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// RecordingStateChanged emits recording lifecycle updates to the frontend.
func (a *App) RecordingStateChanged(state domain.RecordingState) {
	a.emit(eventRecordingState, state)
	if state.Phase == domain.PhaseRecording {
		a.notifier.Notify("Recording started", "")
	}
}

// MicrophoneFailed tells the UI the recording continues without the mic.
func (a *App) MicrophoneFailed(detail string) {
	a.emit(eventMicFailure, map[string]string{
		"message": "Microphone unavailable, recording continues without it",
		"detail":  detail,
	})
	a.notifier.Notify("Microphone unavailable", "Recording continues without the microphone")
}

// MemoryWarning reports accumulated recording data crossing the warn mark.
func (a *App) MemoryWarning(totalBytes int64) {
	a.emit(eventMemoryWarning, map[string]int64{"totalBytes": totalBytes})
	a.notifier.Notify("Recording memory warning", fmt.Sprintf("Buffered recording data reached %d MB", totalBytes/(1<<20)))
}

// StreamsReleased signals that every capture stream is closed.
func (a *App) StreamsReleased() {
	a.emit(eventStreamsReleased, nil)
}

// RecordingComplete delivers the finalized artifact.
func (a *App) RecordingComplete(artifact domain.RecordingArtifact) {
	a.mu.Lock()
	a.lastArtifact = &artifact
	a.mu.Unlock()

	a.emit(eventRecordingComplete, artifact)
	a.notifier.Notify("Recording saved", artifact.Video.Filename)
}

// RecordingFailed reports a recording that ended in error.
func (a *App) RecordingFailed(code domain.ErrorCode, detail string) {
	a.emit(eventRecordingFailed, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
	a.notifier.Notify("Recording failed", errorMessage(code, detail))
}

// MeetingDetected announces a newly found conference tab.
func (a *App) MeetingDetected(meeting domain.Meeting) {
	a.emit(eventMeetingDetected, meeting)
	a.notifier.Notify("Meeting detected", meeting.Title)
}

// MeetingEnded announces that a conference tab went away.
func (a *App) MeetingEnded(meeting domain.Meeting) {
	a.emit(eventMeetingEnded, meeting)
}

// AuthStateChanged pushes sign-in updates to the frontend.
func (a *App) AuthStateChanged(state domain.AuthState) {
	a.emit(eventAuthState, state)
}

func (a *App) emit(event string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, event, payload)
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeTabUnavailable:
		return "Tab is unavailable"
	case domain.ErrorCodeUnsupportedTarget:
		return "This page cannot be captured"
	case domain.ErrorCodeTabActivationFailed:
		return "Could not focus the tab"
	case domain.ErrorCodeStreamIDUnavailable:
		return "Tab capture did not start"
	case domain.ErrorCodeMicrophoneUnavailable:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioGraph:
		return "Audio mixing failed"
	case domain.ErrorCodeEncoding:
		return "Recording encoder failed"
	case domain.ErrorCodeAlreadyRecording:
		return "A recording is already running"
	case domain.ErrorCodeNoRecording:
		return "No recording in progress"
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAuth:
		return "Sign-in required"
	case domain.ErrorCodeUpload:
		return "Upload failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
