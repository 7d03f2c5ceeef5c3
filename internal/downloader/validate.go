package downloader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pdfMagic is the signature every well-formed PDF starts with.
var pdfMagic = []byte("%PDF")

var markupPrefixes = [][]byte{
	[]byte("<!doctype"),
	[]byte("<html"),
	[]byte("<?xml"),
}

// PDFValidator classifies a response body as valid payload or corrupt. A
// corrupt result is not a network failure: the HTTP exchange succeeded but
// the server substituted other content, most often an auth or
// verification interstitial served with status 200.
type PDFValidator struct{}

// Validate returns nil for a valid PDF body and a *FetchError with
// KindContentMismatch otherwise. Markup bodies get a specific diagnostic
// including the interstitial page title when one can be extracted.
func (v *PDFValidator) Validate(body []byte) error {
	if bytes.HasPrefix(body, pdfMagic) {
		return nil
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if isMarkup(trimmed) {
		detail := "received markup instead of PDF payload (likely an auth/verification page)"
		if title := markupTitle(trimmed); title != "" {
			detail = fmt.Sprintf("%s, page title: %q", detail, title)
		}
		return &FetchError{Kind: KindContentMismatch, Detail: detail}
	}

	head := body
	if len(head) > 20 {
		head = head[:20]
	}
	return &FetchError{
		Kind:   KindContentMismatch,
		Detail: fmt.Sprintf("missing PDF signature (got %q)", head),
	}
}

func isMarkup(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, p := range markupPrefixes {
		if bytes.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func markupTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
