package encode

import (
	"context"
	"strings"
	"testing"
)

func TestSelectPrefersRicherVideoCodecs(t *testing.T) {
	t.Parallel()

	supported := []string{MimeVideoAVI, MimeVideoMP4, MimeVideoVP9, MimeVideoWebM}
	mime, err := Select(KindVideo, supported)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if mime != MimeVideoVP9 {
		t.Fatalf("expected vp9, got %q", mime)
	}

	mime, err = Select(KindVideo, []string{MimeVideoAVI, MimeVideoMP4})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if mime != MimeVideoMP4 {
		t.Fatalf("expected mp4, got %q", mime)
	}

	mime, err = Select(KindVideo, []string{MimeVideoAVI})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if mime != MimeVideoAVI {
		t.Fatalf("expected avi fallback, got %q", mime)
	}
}

func TestSelectPrefersOpusAudio(t *testing.T) {
	t.Parallel()

	mime, err := Select(KindAudio, []string{MimeAudioWAV, MimeAudioOpusOgg, MimeAudioOpusWebM})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if mime != MimeAudioOpusWebM {
		t.Fatalf("expected opus webm, got %q", mime)
	}

	mime, err = Select(KindAudio, []string{MimeAudioWAV, MimeAudioOpusOgg})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if mime != MimeAudioOpusOgg {
		t.Fatalf("expected opus ogg, got %q", mime)
	}
}

func TestSelectNormalizesSupportEntries(t *testing.T) {
	t.Parallel()

	mime, err := Select(KindVideo, []string{"  Video/WebM;codecs=VP9,Opus  "})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if mime != MimeVideoVP9 {
		t.Fatalf("expected vp9, got %q", mime)
	}
}

func TestSelectRejectsUnknownSupport(t *testing.T) {
	t.Parallel()

	if _, err := Select(KindVideo, nil); err == nil {
		t.Fatalf("expected error for empty support")
	}
	_, err := Select(KindAudio, []string{"video/quicktime"})
	if err == nil {
		t.Fatalf("expected error for unusable support")
	}
	if !strings.Contains(err.Error(), "audio") {
		t.Fatalf("expected kind in error, got %v", err)
	}
}

func TestDetectSupportWithoutFFmpeg(t *testing.T) {
	t.Parallel()

	supported := DetectSupport(context.Background(), "/nonexistent/tabcap-ffmpeg")
	if len(supported) != 2 {
		t.Fatalf("expected builtin containers only, got %v", supported)
	}
	if supported[0] != MimeVideoAVI || supported[1] != MimeAudioWAV {
		t.Fatalf("unexpected builtin set: %v", supported)
	}
}

func TestDetectSupportFullBuild(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "encoders.sh", `#!/usr/bin/env bash
cat <<'EOF'
Encoders:
 V..... = Video
 ------
 V....D libvpx               vp8 encoder
 V....D libvpx-vp9           vp9 encoder
 V....D libx264              h264 encoder
 A....D aac                  aac encoder
 A....D libopus              opus encoder
EOF
`)

	supported := DetectSupport(context.Background(), script)
	set := make(map[string]bool, len(supported))
	for _, mime := range supported {
		if set[mime] {
			t.Fatalf("duplicate mime %q in %v", mime, supported)
		}
		set[mime] = true
	}

	want := []string{
		MimeVideoAVI, MimeAudioWAV,
		MimeVideoVP9, MimeVideoVP8, MimeVideoH264, MimeVideoWebM, MimeVideoMP4,
		MimeAudioOpusWebM, MimeAudioWebM, MimeAudioOpusOgg, MimeAudioMP4,
	}
	for _, mime := range want {
		if !set[mime] {
			t.Fatalf("expected %q in %v", mime, supported)
		}
	}
	if len(supported) != len(want) {
		t.Fatalf("expected %d containers, got %v", len(want), supported)
	}
}

func TestDetectSupportNeedsOpusForWebM(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "noopus.sh", `#!/usr/bin/env bash
cat <<'EOF'
Encoders:
 V....D libvpx-vp9           vp9 encoder
EOF
`)

	supported := DetectSupport(context.Background(), script)
	if len(supported) != 2 {
		t.Fatalf("expected builtin containers only, got %v", supported)
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		MimeVideoVP9:      "webm",
		MimeVideoWebM:     "webm",
		MimeVideoMP4:      "mp4",
		MimeVideoAVI:      "avi",
		MimeAudioOpusWebM: "webm",
		MimeAudioOpusOgg:  "ogg",
		MimeAudioMP4:      "m4a",
		MimeAudioWAV:      "wav",
		"application/x":   "bin",
	}
	for mime, want := range cases {
		if got := Extension(mime); got != want {
			t.Fatalf("Extension(%q) = %q, want %q", mime, got, want)
		}
	}
}
