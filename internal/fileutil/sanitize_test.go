package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"invoice.pdf", "invoice.pdf"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{`tax: 2025?.pdf`, "tax_ 2025_.pdf"},
		{"  spaced  ", "spaced"},
		{"", "document"},
		{"...", "document"},
		{"report\x00\x1f.txt", "report__.txt"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 400) + ".pdf"
	got := SanitizeFilename(long)
	if len(got) > 120 {
		t.Fatalf("expected capped length, got %d", len(got))
	}
	if filepath.Ext(got) != ".pdf" {
		t.Fatalf("expected extension preserved, got %q", got)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/tmp/scan 001.pdf"); got != "scan 001" {
		t.Fatalf("Stem returned %q", got)
	}
}

func TestWriteStaged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "consume")
	path, err := WriteStaged(dir, "mailroom-*", []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("WriteStaged failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("staged file outside dir: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged: %v", err)
	}
	if string(data) != "%PDF-1.4 test" {
		t.Fatalf("unexpected staged content %q", data)
	}

	other, err := WriteStaged(dir, "mailroom-*", []byte("second"))
	if err != nil {
		t.Fatalf("WriteStaged failed: %v", err)
	}
	if other == path {
		t.Fatal("expected unique staged filenames")
	}
}
