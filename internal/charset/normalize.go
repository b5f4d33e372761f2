package charset

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/japanese"
)

var (
	ErrEmptyInput = errors.New("empty document")
	ErrDecode     = errors.New("failed to decode document")
)

const (
	UTF8     = "utf-8"
	ShiftJIS = "shift_jis"

	// UTF8Meta is the only charset declaration left in normalized output.
	UTF8Meta = `<meta charset="utf-8">`

	sniffLimit = 10000
)

// Source records which signal decided the charset.
type Source string

const (
	SourceMeta          Source = "meta"
	SourceByteSignature Source = "byte-signature"
	SourcePathHint      Source = "path-hint"
	SourceDefault       Source = "default"
)

// DefaultLegacyMarkers identify archived outlet pages saved as Shift-JIS.
var DefaultLegacyMarkers = []string{"dell_outlets"}

var (
	charsetDecl = regexp.MustCompile(`(?i)charset=["']?([a-zA-Z0-9_-]+)`)
	metaTag     = regexp.MustCompile(`(?i)<meta[^>]*>`)
	headTag     = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)

	// Declared labels containing one of these decode as Shift-JIS.
	shiftJISLabels = []string{"shift", "sjis", "cp932", "windows-31j"}

	// Shift-JIS byte signatures of words that only occur on outlet pages.
	shiftJISSignatures = [][]byte{
		{0x89, 0xbf, 0x8a, 0x69}, // 価格
		{0xb1, 0xb3, 0xc4, 0xda}, // ｱｳﾄﾚ
	}
)

// Decision is the charset chosen for one document.
type Decision struct {
	Charset  string `json:"charset"`
	Source   Source `json:"source"`
	Declared string `json:"declared,omitempty"`
}

// Result is a normalized document: UTF-8 markup carrying a single
// utf-8 declaration, and the tree parsed from it.
type Result struct {
	HTML         string
	Decision     Decision
	HasPriceWord bool
	Document     *goquery.Document
}

type Normalizer struct {
	legacyMarkers []string
	logger        *slog.Logger
}

// NewNormalizer returns a Normalizer. With no markers the defaults apply.
func NewNormalizer(logger *slog.Logger, legacyMarkers ...string) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if len(legacyMarkers) == 0 {
		legacyMarkers = DefaultLegacyMarkers
	}
	return &Normalizer{
		legacyMarkers: legacyMarkers,
		logger:        logger.With("component", "charset"),
	}
}

// Detect picks the charset of raw. Checks run in a fixed order: declared
// charset in the first 10000 bytes, Shift-JIS byte signatures, legacy archive
// path, then UTF-8.
func (n *Normalizer) Detect(raw []byte, pathHint string) Decision {
	sniff := raw
	if len(sniff) > sniffLimit {
		sniff = sniff[:sniffLimit]
	}

	if m := charsetDecl.FindSubmatch(sniff); m != nil {
		declared := strings.ToLower(string(m[1]))
		if isShiftJISLabel(declared) {
			return Decision{Charset: ShiftJIS, Source: SourceMeta, Declared: declared}
		}
		return Decision{Charset: UTF8, Source: SourceMeta, Declared: declared}
	}

	for _, sig := range shiftJISSignatures {
		if bytes.Contains(raw, sig) {
			return Decision{Charset: ShiftJIS, Source: SourceByteSignature}
		}
	}

	if n.isLegacyArchive(pathHint) {
		return Decision{Charset: ShiftJIS, Source: SourcePathHint}
	}

	return Decision{Charset: UTF8, Source: SourceDefault}
}

// Normalize decodes raw with the detected charset, rewrites its meta tags and
// parses the result. The input slice is not modified.
func (n *Normalizer) Normalize(raw []byte, pathHint string) (*Result, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	decision := n.Detect(raw, pathHint)
	n.logger.Debug("charset detected",
		"charset", decision.Charset,
		"source", decision.Source,
		"declared", decision.Declared,
		"path", pathHint)

	text, err := Decode(raw, decision.Charset)
	if err != nil {
		return nil, err
	}

	hasPrice := strings.Contains(text, "価格")
	n.logger.Debug("document decoded", "length", len(text), "has_price_word", hasPrice)

	html := RewriteMeta(text)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &Result{
		HTML:         html,
		Decision:     decision,
		HasPriceWord: hasPrice,
		Document:     doc,
	}, nil
}

// Decode converts raw to a Go string. Invalid UTF-8 sequences are replaced
// with U+FFFD; Shift-JIS decoder failures are returned as ErrDecode.
func Decode(raw []byte, charset string) (string, error) {
	switch charset {
	case ShiftJIS:
		out, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("%w as %s: %v", ErrDecode, charset, err)
		}
		return string(out), nil
	case UTF8:
		if utf8.Valid(raw) {
			return string(raw), nil
		}
		return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
	default:
		return "", fmt.Errorf("%w: unsupported charset %q", ErrDecode, charset)
	}
}

// RewriteMeta removes every meta tag from html and declares utf-8 right after
// the opening head tag, or at the very start when there is none.
func RewriteMeta(html string) string {
	html = metaTag.ReplaceAllString(html, "")

	loc := headTag.FindStringIndex(html)
	if loc == nil {
		return UTF8Meta + html
	}
	return html[:loc[1]] + UTF8Meta + html[loc[1]:]
}

func isShiftJISLabel(label string) bool {
	for _, l := range shiftJISLabels {
		if strings.Contains(label, l) {
			return true
		}
	}
	return false
}

func (n *Normalizer) isLegacyArchive(path string) bool {
	if path == "" {
		return false
	}
	for _, marker := range n.legacyMarkers {
		if marker != "" && strings.Contains(path, marker) {
			return true
		}
	}
	return false
}
