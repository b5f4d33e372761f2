package parser

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelector matches nodes whose text never belongs to a cell value.
const nonContentSelector = "script, style, select, link, button, input"

// CleanText returns the visible text of sel with form controls and scripts
// removed, line breaks turned into spaces and whitespace collapsed.
// A nil or empty selection yields "".
//
// The work happens on a clone, so the caller's document is never modified.
func CleanText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	clone := sel.First().Clone()
	clone.Find(nonContentSelector).Remove()
	clone.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: " "})
	})

	return collapseWhitespace(clone.Text())
}

// collapseWhitespace trims s and folds every whitespace run into one space.
// NBSP, the ideographic space and the byte order mark count as whitespace.
func collapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpace), " ")
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}
