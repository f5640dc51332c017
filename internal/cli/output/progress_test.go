package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar_Percent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf, "up", 2048)

	p.Percent(10)
	p.Percent(10)
	if got := strings.Count(buf.String(), "\r"); got != 1 {
		t.Errorf("repeated percentage redrawn, %d draws", got)
	}
	if !strings.Contains(buf.String(), " 10% of 2.0 KB") {
		t.Errorf("output = %q", buf.String())
	}

	p.Percent(140)
	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("percent should clamp to 100, got %q", buf.String())
	}
}

func TestProgressBar_Finish(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf, "dl", 0)
	p.Finish(true)
	if buf.Len() != 0 {
		t.Errorf("bar that never drew printed %q", buf.String())
	}

	p.Percent(40)
	p.Finish(true)
	if !strings.HasSuffix(buf.String(), "100%\n") {
		t.Errorf("completed Finish output = %q", buf.String())
	}

	buf.Reset()
	failed := NewProgressBar(&buf, "dl", 0)
	failed.Percent(40)
	failed.Finish(false)
	if !strings.HasSuffix(buf.String(), " 40%\n") {
		t.Errorf("failed Finish output = %q", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
