package domain

import (
	"strings"
	"time"
)

// RecordingPhase models the recording lifecycle.
type RecordingPhase string

const (
	PhaseIdle      RecordingPhase = "idle"
	PhaseStarting  RecordingPhase = "starting"
	PhaseRecording RecordingPhase = "recording"
	PhaseStopping  RecordingPhase = "stopping"
	PhaseComplete  RecordingPhase = "complete"
	PhaseError     RecordingPhase = "error"
)

// RecordingType identifies the capture target kind. Only tab capture is
// supported; window and display are accepted from old callers and
// normalized to tab.
type RecordingType string

const (
	RecordingTypeTab     RecordingType = "tab"
	RecordingTypeWindow  RecordingType = "window"
	RecordingTypeDisplay RecordingType = "display"
)

// Normalize maps legacy capture types onto tab and reports whether the
// input was a legacy value.
func (t RecordingType) Normalize() (RecordingType, bool) {
	switch t {
	case RecordingTypeWindow, RecordingTypeDisplay:
		return RecordingTypeTab, true
	case RecordingTypeTab, "":
		return RecordingTypeTab, false
	default:
		return RecordingTypeTab, true
	}
}

// VideoQuality selects the captured frame dimensions.
type VideoQuality string

const (
	Quality720p  VideoQuality = "720p"
	Quality1080p VideoQuality = "1080p"
	Quality4K    VideoQuality = "4k"
)

// Dimensions returns the frame size for a quality setting. Unknown
// values fall back to 1080p.
func (q VideoQuality) Dimensions() (width int, height int) {
	switch q {
	case Quality720p:
		return 1280, 720
	case Quality4K:
		return 3840, 2160
	default:
		return 1920, 1080
	}
}

// RecordingOptions configures a single recording.
type RecordingOptions struct {
	RecordingType      RecordingType `json:"recordingType"`
	VideoQuality       VideoQuality  `json:"videoQuality"`
	IncludeDeviceAudio bool          `json:"includeDeviceAudio"`
	IncludeMicrophone  bool          `json:"includeMicrophone"`
	TargetTabID        string        `json:"targetTabId"`
}

// WantsAudio reports whether any audio source is requested.
func (o RecordingOptions) WantsAudio() bool {
	return o.IncludeDeviceAudio || o.IncludeMicrophone
}

// RecordingState is the single authoritative recording snapshot.
// It changes only through state machine transitions.
type RecordingState struct {
	Phase         RecordingPhase     `json:"phase"`
	IsRecording   bool               `json:"isRecording"`
	IsPaused      bool               `json:"isPaused"`
	RecordingType RecordingType      `json:"recordingType,omitempty"`
	CurrentTabID  string             `json:"currentTabId,omitempty"`
	StartedAt     *time.Time         `json:"recordingStartTime,omitempty"`
	Recording     *RecordingArtifact `json:"recordingData,omitempty"`
}

// BlobHandle points at one finalized media file.
type BlobHandle struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// RecordingArtifact is the output of a completed recording. Audio is
// nil for video-only recordings.
type RecordingArtifact struct {
	ID         string      `json:"id"`
	Video      BlobHandle  `json:"videoBlobHandle"`
	Audio      *BlobHandle `json:"audioBlobHandle,omitempty"`
	DurationMs int64       `json:"durationMs"`
	RecordedAt time.Time   `json:"recordedAt"`
	TabID      string      `json:"tabId"`
	TabTitle   string      `json:"tabTitle,omitempty"`
	TabURL     string      `json:"tabUrl,omitempty"`
}

// StartResult is returned by a start request.
type StartResult struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

// StopResult carries the finalized artifact back to the caller.
type StopResult struct {
	Recording RecordingArtifact `json:"recording"`
}

// Tab describes one capturable browser page, as reported by the
// browser debugging endpoint.
type Tab struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// restrictedSchemes are browser-internal URL prefixes that can never be
// captured.
var restrictedSchemes = []string{
	"chrome://",
	"chrome-extension://",
	"devtools://",
	"edge://",
	"about:",
	"view-source:",
}

// RestrictedURL reports whether a page URL belongs to a browser-internal
// surface that capture must refuse.
func RestrictedURL(url string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(url))
	for _, scheme := range restrictedSchemes {
		if strings.HasPrefix(trimmed, scheme) {
			return true
		}
	}
	return false
}

// VideoFrame is one encoded (JPEG) frame from the capture source.
type VideoFrame struct {
	Data       []byte
	CapturedAt time.Time
}

// Meeting is a detected conference session in some browser tab.
type Meeting struct {
	TabID      string    `json:"tabId"`
	Title      string    `json:"title"`
	RoomCode   string    `json:"roomCode"`
	URL        string    `json:"url"`
	DetectedAt time.Time `json:"detectedAt"`
}

// UploadResult identifies the stored recording after a successful upload.
type UploadResult struct {
	StorageKey string    `json:"storageKey"`
	UploadedAt time.Time `json:"uploadedAt"`
}
