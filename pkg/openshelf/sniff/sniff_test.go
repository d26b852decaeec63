package sniff_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/openshelf/openshelf/pkg/openshelf/sniff"
	"github.com/stretchr/testify/assert"
)

// epubPrefix builds the leading bytes of a real EPUB: a ZIP local file header
// whose first entry is the uncompressed "mimetype" file.
func epubPrefix() []byte {
	const mimetypeBody = "application/epub+zip"

	var buf bytes.Buffer
	buf.Write([]byte("PK\x03\x04"))
	binary.Write(&buf, binary.LittleEndian, uint16(20)) // version needed
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // flags
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // method: stored
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // mod time+date
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // crc32 (unchecked)
	binary.Write(&buf, binary.LittleEndian, uint32(len(mimetypeBody)))
	binary.Write(&buf, binary.LittleEndian, uint32(len(mimetypeBody)))
	binary.Write(&buf, binary.LittleEndian, uint16(len("mimetype")))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // extra len
	buf.WriteString("mimetype")
	buf.WriteString(mimetypeBody)
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	d := sniff.NewDetector()

	tests := []struct {
		name      string
		prefix    []byte
		fileName  string
		wantType  string
		wantAllow bool
	}{
		{
			name:      "pdf magic",
			prefix:    []byte("%PDF-1.7\nrest of the document"),
			fileName:  "book.pdf",
			wantType:  "application/pdf",
			wantAllow: true,
		},
		{
			name:      "epub container",
			prefix:    epubPrefix(),
			fileName:  "book.epub",
			wantType:  "application/epub+zip",
			wantAllow: true,
		},
		{
			name:      "plain zip with epub extension",
			prefix:    append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 64)...),
			fileName:  "book.epub",
			wantType:  "application/epub+zip",
			wantAllow: true,
		},
		{
			name:      "plain text",
			prefix:    []byte("hello, this is definitely not a book"),
			fileName:  "book.pdf",
			wantType:  "text/plain",
			wantAllow: false,
		},
		{
			name:      "empty prefix",
			prefix:    nil,
			fileName:  "book.pdf",
			wantType:  "application/octet-stream",
			wantAllow: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := d.Detect(tt.prefix, tt.fileName)
			assert.Equal(t, tt.wantType, c.MediaType)
			assert.Equal(t, tt.wantAllow, c.Allowed)
		})
	}
}

// Identical bytes must classify identically regardless of the claimed name.
func TestDetectIgnoresFileNameForUnambiguousBytes(t *testing.T) {
	d := sniff.NewDetector()
	prefix := []byte("%PDF-1.4\n%some pdf content here")

	for _, name := range []string{"book.pdf", "book.epub", "book.exe", ""} {
		c := d.Detect(prefix, name)
		assert.Equal(t, "application/pdf", c.MediaType, "fileName=%s", name)
		assert.True(t, c.Allowed)
	}
}

func TestCustomAllowList(t *testing.T) {
	d := sniff.NewDetector("application/pdf")

	c := d.Detect(epubPrefix(), "book.epub")
	assert.Equal(t, "application/epub+zip", c.MediaType)
	assert.False(t, c.Allowed)
}
