package docxpkg

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"slices"
	"time"
)

// Edits lists member changes for Rebuild. Set replaces or adds members; Remove
// drops them. A name in both is removed.
type Edits struct {
	Set    map[string]string
	Remove []string
}

// Rebuild writes a new archive from the package. Members that are not edited
// are copied with their original compressed bytes and headers. Replaced
// members keep their position; added members follow in name order.
func (p *Package) Rebuild(edits Edits) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	removed := make(map[string]bool, len(edits.Remove))
	for _, name := range edits.Remove {
		removed[name] = true
	}
	written := make(map[string]bool, len(p.zr.File))

	for _, f := range p.zr.File {
		if removed[f.Name] {
			continue
		}
		content, replace := edits.Set[f.Name]
		if !replace {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		// A replaced name is written once even if the archive repeats it.
		if written[f.Name] {
			continue
		}
		written[f.Name] = true
		if err := writeMember(zw, f.Name, f.Modified, content); err != nil {
			return nil, err
		}
	}

	var added []string
	for name := range edits.Set {
		if !written[name] && !removed[name] {
			added = append(added, name)
		}
	}
	slices.Sort(added)
	for _, name := range added {
		if err := writeMember(zw, name, time.Now(), edits.Set[name]); err != nil {
			return nil, err
		}
	}

	if p.zr.Comment != "" {
		if err := zw.SetComment(p.zr.Comment); err != nil {
			return nil, fmt.Errorf("set archive comment: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMember(zw *zip.Writer, name string, modified time.Time, content string) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
