// Package archive unpacks an uploaded ZIP and classifies its members
// into renderable Gerber layers, recognized-but-skipped drill files,
// and everything else.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

// Class tags what an archive member is.
type Class int

const (
	// ClassIgnored marks members with no recognized layer extension.
	ClassIgnored Class = iota
	// ClassGerber marks renderable RS-274X layer candidates.
	ClassGerber
	// ClassDrill marks Excellon drill files. They are recognized so
	// uploads containing them do not look broken, but never rendered.
	ClassDrill
)

func (c Class) String() string {
	switch c {
	case ClassGerber:
		return "gerber"
	case ClassDrill:
		return "drill"
	default:
		return "ignored"
	}
}

// Member is one file extracted from the upload. Err is set when the
// member was classified as renderable but could not be extracted; the
// batch reports it per-file instead of failing the whole upload.
type Member struct {
	Name  string
	Class Class
	Data  []byte
	Err   error
}

// Archive holds the extracted members in enumeration order.
type Archive struct {
	Members []Member
}

// Gerbers returns the renderable candidates, preserving order.
func (a *Archive) Gerbers() []Member {
	var out []Member
	for _, m := range a.Members {
		if m.Class == ClassGerber {
			out = append(out, m)
		}
	}
	return out
}

// Limits caps the upload so attacker-sized archives fail fast.
type Limits struct {
	MaxArchiveBytes int64
	MaxMemberBytes  int64
}

// DefaultLimits returns the standard upload caps.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveBytes: 50 << 20,
		MaxMemberBytes:  20 << 20,
	}
}

// gerberExts covers the generic RS-274X extensions plus the
// per-function suffixes common fab exports use (copper, mask, silk,
// outline), plus the legacy photoplotter names.
var gerberExts = map[string]bool{
	".gbr": true, ".ger": true,
	".gtl": true, ".gbl": true,
	".gts": true, ".gbs": true,
	".gto": true, ".gbo": true,
	".gko": true, ".gm1": true,
	".pho": true, ".art": true,
}

var drillExts = map[string]bool{
	".drl": true, ".xln": true, ".txt": true,
}

// Classify tags a member name by extension, case-insensitively.
func Classify(name string) Class {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case gerberExts[ext]:
		return ClassGerber
	case drillExts[ext]:
		return ClassDrill
	default:
		return ClassIgnored
	}
}

// Load opens a ZIP held in memory and extracts its members. An
// unreadable container or an oversized upload is an archive error;
// a single bad renderable member is recorded on that member only.
func Load(data []byte, limits Limits) (*Archive, error) {
	if limits.MaxArchiveBytes > 0 && int64(len(data)) > limits.MaxArchiveBytes {
		return nil, errors.New(errors.ErrCodeArchive,
			"archive is %d bytes, limit is %d", len(data), limits.MaxArchiveBytes)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "not a readable zip archive")
	}

	a := &Archive{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || hiddenMember(f.Name) {
			continue
		}
		m := Member{Name: path.Base(f.Name), Class: Classify(f.Name)}
		if m.Class == ClassGerber {
			m.Data, m.Err = extract(f, limits.MaxMemberBytes)
		}
		a.Members = append(a.Members, m)
	}
	return a, nil
}

// hiddenMember filters macOS resource junk and dotfiles that zip
// tools pack alongside real exports.
func hiddenMember(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}

func extract(f *zip.File, maxBytes int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "open member %q", f.Name)
	}
	defer rc.Close()

	// Read one byte past the cap so the declared size cannot lie.
	var r io.Reader = rc
	if maxBytes > 0 {
		r = io.LimitReader(rc, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "read member %q", f.Name)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, errors.New(errors.ErrCodeArchive,
			"member %q exceeds the %d byte limit", f.Name, maxBytes)
	}
	return data, nil
}
