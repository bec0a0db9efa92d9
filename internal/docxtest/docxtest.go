// Package docxtest builds small .docx packages in memory for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

const ContentTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

// SampleDocument has one insertion (id 1, Alice), one deletion (id 2, Bob) and
// a comment anchor (id 0) around "quick".
const SampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t xml:space="preserve">The </w:t></w:r>` +
	`<w:commentRangeStart w:id="0"/><w:r><w:t>quick</w:t></w:r><w:commentRangeEnd w:id="0"/>` +
	`<w:ins w:id="1" w:author="Alice" w:date="2024-01-01T00:00:00Z"><w:r><w:t xml:space="preserve"> brown</w:t></w:r></w:ins>` +
	`<w:r><w:t xml:space="preserve"> fox</w:t></w:r>` +
	`<w:del w:id="2" w:author="Bob" w:date="2024-01-02T00:00:00Z"><w:r><w:delText xml:space="preserve"> jumps</w:delText></w:r></w:del>` +
	`</w:p></w:body></w:document>`

// SampleComments has a comment (0, Carol) and a reply (5, Alice).
const SampleComments = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:comments xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml">` +
	`<w:comment w:id="0" w:author="Carol" w:date="2024-01-03T00:00:00Z"><w:p w14:paraId="AAAA0001"><w:r><w:t>Too fast?</w:t></w:r></w:p></w:comment>` +
	`<w:comment w:id="5" w:author="Alice" w:date="2024-01-04T00:00:00Z"><w:p w14:paraId="AAAA0002"><w:r><w:t>Agreed.</w:t></w:r></w:p></w:comment>` +
	`</w:comments>`

// SampleCommentsExtended links comment 5 under comment 0 and marks 0 resolved.
const SampleCommentsExtended = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w15:commentsEx xmlns:w15="http://schemas.microsoft.com/office/word/2012/wordml">` +
	`<w15:commentEx w15:paraId="AAAA0001" w15:done="1"/>` +
	`<w15:commentEx w15:paraId="AAAA0002" w15:paraIdParent="AAAA0001" w15:done="0"/>` +
	`</w15:commentsEx>`

// Part is one archive member.
type Part struct {
	Name    string
	Content string
}

// Build writes parts in order into an in-memory zip.
func Build(t testing.TB, parts ...Part) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, p := range parts {
		f, err := w.Create(p.Name)
		require.NoError(t, err)
		_, err = f.Write([]byte(p.Content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// Sample returns a package with the sample document, comments and extended
// comments.
func Sample(t testing.TB) []byte {
	t.Helper()
	return Build(t,
		Part{"[Content_Types].xml", ContentTypes},
		Part{"word/document.xml", SampleDocument},
		Part{"word/comments.xml", SampleComments},
		Part{"word/commentsExtended.xml", SampleCommentsExtended},
	)
}

// WithDocument returns a package holding only content types and documentXML.
func WithDocument(t testing.TB, documentXML string) []byte {
	t.Helper()
	return Build(t,
		Part{"[Content_Types].xml", ContentTypes},
		Part{"word/document.xml", documentXML},
	)
}

// Member reads one member from a package, failing the test if absent.
func Member(t testing.TB, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		require.NoError(t, err)
		return b.String()
	}
	t.Fatalf("member %s not found", name)
	return ""
}
