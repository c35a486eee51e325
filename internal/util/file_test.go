package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestIsAllowedVideoFile(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"lesson.mp4", true},
		{"LESSON.MP4", true},
		{"片段.webm", true},
		{"notes.pdf", false},
		{"archive.tar.gz", false},
		{"noextension", false},
	}
	for _, tc := range cases {
		if got := IsAllowedVideoFile(tc.filename); got != tc.want {
			t.Errorf("IsAllowedVideoFile(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestValidateMimeTypeSniffsContent(t *testing.T) {
	// WebM 的 EBML 魔数会被嗅探为 video/webm，与扩展名无关
	webm := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 64)...)
	mime, err := ValidateMimeType(bytes.NewReader(webm), []string{MimeVideo, MimeOctetStream})
	if err != nil {
		t.Fatalf("ValidateMimeType(webm): %v", err)
	}
	if !strings.HasPrefix(mime, MimeVideo) && mime != MimeOctetStream {
		t.Errorf("detected mime = %q, want video/* or octet-stream", mime)
	}

	// 改名成 .mp4 的 HTML 依然会被内容嗅探拦下
	html := []byte("<html><body>not a video</body></html>")
	if _, err := ValidateMimeType(bytes.NewReader(html), []string{MimeVideo, MimeOctetStream}); err == nil {
		t.Error("ValidateMimeType(html) = nil error, want rejection")
	}
}
