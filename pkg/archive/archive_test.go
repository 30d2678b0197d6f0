package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Class
	}{
		{"board.gbr", ClassGerber},
		{"board.GBR", ClassGerber},
		{"copper-top.gtl", ClassGerber},
		{"mask-bottom.gbs", ClassGerber},
		{"outline.gko", ClassGerber},
		{"legacy.pho", ClassGerber},
		{"holes.drl", ClassDrill},
		{"holes.xln", ClassDrill},
		{"readme.md", ClassIgnored},
		{"board.png", ClassIgnored},
		{"noextension", ClassIgnored},
	}
	for _, tt := range tests {
		if got := Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoadClassifiesMembers(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"gerbers/top.gtl":   "G04 top*",
		"gerbers/drill.drl": "M48",
		"notes.txt":         "hello",
		"README.md":         "readme",
	})

	a, err := Load(data, DefaultLimits())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(a.Members) != 4 {
		t.Fatalf("got %d members, want 4", len(a.Members))
	}

	gerbers := a.Gerbers()
	if len(gerbers) != 1 {
		t.Fatalf("got %d gerber candidates, want 1", len(gerbers))
	}
	if gerbers[0].Name != "top.gtl" {
		t.Errorf("candidate name = %q, want top.gtl", gerbers[0].Name)
	}
	if string(gerbers[0].Data) != "G04 top*" {
		t.Errorf("candidate data = %q", gerbers[0].Data)
	}
}

func TestLoadOnlyExtractsCandidates(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"big.bin": "should not be extracted",
		"top.gbr": "G04*",
	})
	a, err := Load(data, DefaultLimits())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	for _, m := range a.Members {
		if m.Class != ClassGerber && m.Data != nil {
			t.Errorf("member %q extracted despite class %v", m.Name, m.Class)
		}
	}
}

func TestLoadSkipsHiddenMembers(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"__MACOSX/top.gbr": "resource fork",
		".hidden.gbr":      "dotfile",
		"top.gbr":          "G04*",
	})
	a, err := Load(data, DefaultLimits())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(a.Members) != 1 || a.Members[0].Name != "top.gbr" {
		t.Errorf("members = %+v, want just top.gbr", a.Members)
	}
}

func TestLoadNotAZip(t *testing.T) {
	_, err := Load([]byte("definitely not a zip"), DefaultLimits())
	if !errors.Is(err, errors.ErrCodeArchive) {
		t.Errorf("Load = %v, want ARCHIVE_ERROR", err)
	}
}

func TestLoadArchiveTooLarge(t *testing.T) {
	data := zipBytes(t, map[string]string{"top.gbr": "G04*"})
	limits := DefaultLimits()
	limits.MaxArchiveBytes = 10
	_, err := Load(data, limits)
	if !errors.Is(err, errors.ErrCodeArchive) {
		t.Errorf("Load = %v, want ARCHIVE_ERROR", err)
	}
}

func TestLoadOversizedMemberFailsThatMemberOnly(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"big.gbr":   "0123456789abcdef",
		"small.gbr": "G04*",
	})
	limits := DefaultLimits()
	limits.MaxMemberBytes = 8

	a, err := Load(data, limits)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	var big, small *Member
	for i := range a.Members {
		switch a.Members[i].Name {
		case "big.gbr":
			big = &a.Members[i]
		case "small.gbr":
			small = &a.Members[i]
		}
	}
	if big == nil || small == nil {
		t.Fatalf("members = %+v", a.Members)
	}
	if !errors.Is(big.Err, errors.ErrCodeArchive) {
		t.Errorf("big.Err = %v, want ARCHIVE_ERROR", big.Err)
	}
	if small.Err != nil || string(small.Data) != "G04*" {
		t.Errorf("small member should extract cleanly, got err=%v data=%q", small.Err, small.Data)
	}
}

func TestLoadEmptyArchive(t *testing.T) {
	data := zipBytes(t, nil)
	a, err := Load(data, DefaultLimits())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(a.Members) != 0 {
		t.Errorf("got %d members, want 0", len(a.Members))
	}
	if got := a.Gerbers(); got != nil {
		t.Errorf("Gerbers() = %v, want nil", got)
	}
}
