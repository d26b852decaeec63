// Package sniff classifies uploaded content from its leading bytes. The
// declared filename and content type are never trusted on their own: a client
// can claim ".pdf" on arbitrary bytes, so the verdict is anchored on magic
// numbers first and falls back to extension guessing only when the bytes are
// ambiguous.
package sniff

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

const (
	TypePDF  = "application/pdf"
	TypeEPUB = "application/epub+zip"

	fallbackType = "application/octet-stream"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
)

// Detector is a pure classifier with a configured allow-list. Safe for
// concurrent use.
type Detector struct {
	allowed map[string]struct{}
}

// NewDetector builds a detector allowing the given media types. With no
// arguments it allows PDF and EPUB.
func NewDetector(allowedTypes ...string) *Detector {
	if len(allowedTypes) == 0 {
		allowedTypes = []string{TypePDF, TypeEPUB}
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Detector{allowed: allowed}
}

// Detect classifies a byte prefix. Layered strategy: well-known binary
// signatures first, then byte-content detection, then extension guessing,
// then a generic default. EPUB is a ZIP container with no unique magic
// number, so a ZIP prefix that the content detector cannot pin down is
// treated as EPUB only when the filename agrees.
func (d *Detector) Detect(prefix []byte, fileName string) openshelf.Classification {
	mediaType := d.classify(prefix, fileName)
	_, ok := d.allowed[mediaType]
	return openshelf.Classification{MediaType: mediaType, Allowed: ok}
}

func (d *Detector) classify(prefix []byte, fileName string) string {
	if len(prefix) == 0 {
		return fallbackType
	}

	if bytes.HasPrefix(prefix, pdfMagic) {
		return TypePDF
	}

	if bytes.HasPrefix(prefix, zipMagic) {
		detected := normalize(mimetype.Detect(prefix).String())
		if detected == TypeEPUB {
			return TypeEPUB
		}
		// mimetype needs the "mimetype" entry early in the archive to call
		// it EPUB; a truncated prefix may hide it, so the extension breaks
		// the tie for ZIP content.
		if strings.EqualFold(filepath.Ext(fileName), ".epub") {
			return TypeEPUB
		}
		return detected
	}

	if detected := normalize(mimetype.Detect(prefix).String()); detected != fallbackType {
		return detected
	}

	if byExt := normalize(mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))); byExt != "" {
		return byExt
	}
	return fallbackType
}

// normalize strips any media-type parameters, e.g. "; charset=utf-8".
func normalize(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
