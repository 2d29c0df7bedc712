package encode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Container mime types in preference order. The webm family leads
// because it streams without rewriting headers; the x-msvideo and wav
// entries are served by the builtin encoders and are always available.
const (
	MimeVideoVP9  = "video/webm;codecs=vp9,opus"
	MimeVideoVP8  = "video/webm;codecs=vp8,opus"
	MimeVideoH264 = "video/webm;codecs=h264,opus"
	MimeVideoWebM = "video/webm"
	MimeVideoMP4  = "video/mp4"
	MimeVideoAVI  = "video/x-msvideo"

	MimeAudioOpusWebM = "audio/webm;codecs=opus"
	MimeAudioWebM     = "audio/webm"
	MimeAudioOpusOgg  = "audio/ogg;codecs=opus"
	MimeAudioMP4      = "audio/mp4"
	MimeAudioWAV      = "audio/wav"
)

// Kind distinguishes the two artifacts of a recording.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

var videoPreference = []string{
	MimeVideoVP9,
	MimeVideoVP8,
	MimeVideoH264,
	MimeVideoWebM,
	MimeVideoMP4,
	MimeVideoAVI,
}

var audioPreference = []string{
	MimeAudioOpusWebM,
	MimeAudioWebM,
	MimeAudioOpusOgg,
	MimeAudioMP4,
	MimeAudioWAV,
}

// Select picks the best container for an artifact kind from the
// supported set. It is a pure function of its inputs: same kind and
// support always give the same answer.
func Select(kind Kind, supported []string) (string, error) {
	set := make(map[string]bool, len(supported))
	for _, mime := range supported {
		set[strings.TrimSpace(strings.ToLower(mime))] = true
	}

	preference := videoPreference
	if kind == KindAudio {
		preference = audioPreference
	}
	for _, mime := range preference {
		if set[mime] {
			return mime, nil
		}
	}
	return "", fmt.Errorf("no supported %s recording format", kind)
}

// DetectSupport probes the ffmpeg binary for usable codecs and returns
// the supported container set. The builtin fallback containers are
// always included, so a machine without ffmpeg still records.
func DetectSupport(ctx context.Context, ffmpegCommand string) []string {
	supported := []string{MimeVideoAVI, MimeAudioWAV}

	if ffmpegCommand == "" {
		ffmpegCommand = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpegCommand, "-hide_banner", "-encoders")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return supported
	}

	encoders := out.String()
	has := func(name string) bool {
		return strings.Contains(encoders, " "+name+" ")
	}

	// Generic webm needs both a vpx video codec and opus for the
	// audio stream, so it is only advertised alongside a codec pair.
	opus := has("libopus")
	if has("libvpx-vp9") && opus {
		supported = append(supported, MimeVideoVP9, MimeVideoWebM)
	}
	if has("libvpx") && opus {
		supported = append(supported, MimeVideoVP8, MimeVideoWebM)
	}
	if has("libx264") {
		if opus {
			supported = append(supported, MimeVideoH264)
		}
		if has("aac") {
			supported = append(supported, MimeVideoMP4, MimeAudioMP4)
		}
	}
	if opus {
		supported = append(supported, MimeAudioOpusWebM, MimeAudioWebM, MimeAudioOpusOgg)
	}

	return dedupe(supported)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// isWebM reports whether the mime uses the webm container.
func isWebM(mime string) bool {
	return strings.HasPrefix(mime, "video/webm") || strings.HasPrefix(mime, "audio/webm")
}

// Extension returns the artifact file extension for a container mime.
func Extension(mime string) string {
	switch {
	case isWebM(mime):
		return "webm"
	case mime == MimeVideoMP4:
		return "mp4"
	case mime == MimeAudioMP4:
		return "m4a"
	case mime == MimeVideoAVI:
		return "avi"
	case strings.HasPrefix(mime, "audio/ogg"):
		return "ogg"
	case mime == MimeAudioWAV:
		return "wav"
	default:
		return "bin"
	}
}
