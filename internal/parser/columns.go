package parser

import (
	"unicode/utf8"
)

// HeaderMapping assigns a column index to each recognised field of a table.
// A field missing from the map is unmapped.
type HeaderMapping map[Field]int

// MapColumns resolves every field against the cleaned header texts.
func MapColumns(headers []string) HeaderMapping {
	m := make(HeaderMapping, len(Fields))
	for _, f := range Fields {
		if idx := findColumn(headers, fieldKeywords[f]); idx >= 0 {
			m[f] = idx
		}
	}
	return m
}

// Index returns the column assigned to f.
func (m HeaderMapping) Index(f Field) (int, bool) {
	idx, ok := m[f]
	return idx, ok
}

func findColumn(headers []string, terms []string) int {
	for i, h := range headers {
		if containsAny(h, terms) {
			return i
		}
	}
	return -1
}

// InferFromFirstRow fills the price and specification columns from the shape
// of the first data row when the header keywords did not settle them.
// A specification column at index 0 is treated as a serial-number column and
// re-inferred as well.
func (m HeaderMapping) InferFromFirstRow(cells []string) {
	if _, ok := m[FieldPrice]; !ok {
		for i, t := range cells {
			if hasCurrencyMarker(t) {
				m[FieldPrice] = i
				break
			}
		}
	}

	if idx, ok := m[FieldSpecifications]; ok && idx != 0 {
		return
	}

	priceIdx, hasPrice := m[FieldPrice]
	maxLen, maxIdx := 0, -1
	for i, t := range cells {
		if hasPrice && i == priceIdx {
			continue
		}
		if n := utf8.RuneCountInString(t); n > maxLen {
			maxLen, maxIdx = n, i
		}
	}
	if maxIdx != -1 && maxLen > inferredSpecMinLen {
		m[FieldSpecifications] = maxIdx
	}
}

// repairMerged handles tables where one physical column carries both price
// and specification. When exactly one of the two is mapped and the row's cell
// in that column looks like the other field, the column is shared. The change
// sticks for the rest of the table.
func (m HeaderMapping) repairMerged(cells []string) bool {
	priceIdx, hasPrice := m[FieldPrice]
	specIdx, hasSpec := m[FieldSpecifications]

	switch {
	case !hasPrice && hasSpec:
		if hasCurrencyMarker(cellAt(cells, specIdx)) {
			m[FieldPrice] = specIdx
			return true
		}
	case hasPrice && !hasSpec:
		if utf8.RuneCountInString(cellAt(cells, priceIdx)) > mergedSpecMinLength {
			m[FieldSpecifications] = priceIdx
			return true
		}
	}
	return false
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
