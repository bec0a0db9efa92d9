// Package docxpkg opens .docx packages and reads or replaces their markup parts.
package docxpkg

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Member paths inside a word-processing package.
const (
	ContentTypesPath     = "[Content_Types].xml"
	DocumentPath         = "word/document.xml"
	CommentsPath         = "word/comments.xml"
	CommentsExtendedPath = "word/commentsExtended.xml"
)

// MIMEType is the content type of a .docx file.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Package errors. Their text is shown to callers as is.
var (
	ErrInvalidArchive  = errors.New("Failed to parse file as ZIP archive. Please provide a valid .docx file.")
	ErrInvalidPackage  = errors.New("Invalid .docx file: missing [Content_Types].xml")
	ErrMissingDocument = errors.New("Invalid .docx file: missing document.xml")
)

// Package is an opened .docx archive. It keeps the original bytes so members
// can be copied through untouched on rebuild.
type Package struct {
	data    []byte
	zr      *zip.Reader
	members map[string]*zip.File
}

// Parts holds the markup the engine works on. An empty string means the member
// is absent.
type Parts struct {
	Document         string
	Comments         string
	CommentsExtended string
}

// RequireDocument fails when the main document is missing.
func (p Parts) RequireDocument() error {
	if p.Document == "" {
		return ErrMissingDocument
	}
	return nil
}

// Open reads data as a .docx package.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ErrInvalidArchive
	}
	p := &Package{
		data:    data,
		zr:      zr,
		members: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if _, dup := p.members[f.Name]; !dup {
			p.members[f.Name] = f
		}
	}
	if !p.Has(ContentTypesPath) {
		return nil, ErrInvalidPackage
	}
	return p, nil
}

// Has reports whether the package contains name.
func (p *Package) Has(name string) bool {
	_, ok := p.members[name]
	return ok
}

// Size is the length of the original archive in bytes.
func (p *Package) Size() int { return len(p.data) }

// ReadMember returns the uncompressed content of name. ok is false when the
// member does not exist.
func (p *Package) ReadMember(name string) (content string, ok bool, err error) {
	f, ok := p.members[name]
	if !ok {
		return "", false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return "", true, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", true, fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), true, nil
}

// Parts reads the document, comments and extended comments members.
func (p *Package) Parts() (Parts, error) {
	var parts Parts
	targets := []struct {
		name string
		dst  *string
	}{
		{DocumentPath, &parts.Document},
		{CommentsPath, &parts.Comments},
		{CommentsExtendedPath, &parts.CommentsExtended},
	}
	for _, t := range targets {
		content, _, err := p.ReadMember(t.name)
		if err != nil {
			return Parts{}, err
		}
		*t.dst = content
	}
	return parts, nil
}

// Member describes one archive entry.
type Member struct {
	Name             string `json:"name"`
	CompressedSize   uint64 `json:"compressedSize"`
	UncompressedSize uint64 `json:"uncompressedSize"`
	Method           string `json:"method"`
}

// Members lists archive entries in archive order.
func (p *Package) Members() []Member {
	out := make([]Member, 0, len(p.zr.File))
	for _, f := range p.zr.File {
		out = append(out, Member{
			Name:             f.Name,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
			Method:           methodName(f.Method),
		})
	}
	return out
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	}
	return fmt.Sprintf("method-%d", m)
}
