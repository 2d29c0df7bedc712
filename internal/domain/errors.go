package domain

import "errors"

// ErrorCode identifies recording failures surfaced to callers and the UI.
type ErrorCode string

const (
	ErrorCodeTabUnavailable        ErrorCode = "tab_unavailable"
	ErrorCodeUnsupportedTarget     ErrorCode = "unsupported_target"
	ErrorCodeTabActivationFailed   ErrorCode = "tab_activation_failed"
	ErrorCodeStreamIDUnavailable   ErrorCode = "stream_id_unavailable"
	ErrorCodeMicrophoneUnavailable ErrorCode = "microphone_unavailable"
	ErrorCodeAudioGraph            ErrorCode = "audio_graph"
	ErrorCodeEncoding              ErrorCode = "encoding"
	ErrorCodeAlreadyRecording      ErrorCode = "already_recording"
	ErrorCodeNoRecording           ErrorCode = "no_recording"
	ErrorCodeStartup               ErrorCode = "startup"
	ErrorCodeAuth                  ErrorCode = "auth"
	ErrorCodeUpload                ErrorCode = "upload"
)

// RecordingError is a failure with a stable code and a message fit for
// direct display.
type RecordingError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *RecordingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RecordingError) Unwrap() error {
	return e.Err
}

// NewError builds a coded error with a display message.
func NewError(code ErrorCode, message string) *RecordingError {
	return &RecordingError{Code: code, Message: message}
}

// WrapError builds a coded error around an underlying cause.
func WrapError(code ErrorCode, message string, err error) *RecordingError {
	return &RecordingError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code from err, or empty when err carries none.
func CodeOf(err error) ErrorCode {
	var recErr *RecordingError
	if errors.As(err, &recErr) {
		return recErr.Code
	}
	return ""
}
