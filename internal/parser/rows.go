package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/maltedev/outlet-scraper/internal/models"
)

// Rejection reasons reported for dropped rows.
const (
	RejectNotReady     = "header not located"
	RejectTooFewCells  = "too few cells"
	RejectNoCurrency   = "no currency signal in price"
	RejectShortSpec    = "specifications too short"
	RejectNoiseKeyword = "noise keyword in specifications"
)

type tablePhase int

const (
	phaseAwaitingHeader tablePhase = iota
	phaseReady
)

// tableState is the per-table extraction state. The mapping may be widened by
// repairMerged while rows are scanned; it never leaks to another table.
type tableState struct {
	phase    tablePhase
	mapping  HeaderMapping
	repaired bool
}

func newTableState() *tableState {
	return &tableState{phase: phaseAwaitingHeader}
}

// ready fixes the header mapping and allows rows to be extracted.
func (s *tableState) ready(mapping HeaderMapping) {
	s.mapping = mapping
	s.phase = phaseReady
}

// row turns the cleaned cell texts of one data row into a record and decides
// whether to keep it. An empty reason means the row was accepted.
func (s *tableState) row(cells []string) (models.Record, string) {
	if s.phase != phaseReady {
		return models.Record{}, RejectNotReady
	}
	if len(cells) < minDataCells {
		return models.Record{}, RejectTooFewCells
	}

	if s.mapping.repairMerged(cells) {
		s.repaired = true
	}

	rec := s.build(cells)
	return rec, Validate(rec)
}

func (s *tableState) build(cells []string) models.Record {
	field := func(f Field) string {
		idx, ok := s.mapping[f]
		if !ok {
			return ""
		}
		return cellAt(cells, idx)
	}

	return models.Record{
		Price:           field(FieldPrice),
		Specifications:  field(FieldSpecifications),
		OSOffice:        field(FieldOSOffice),
		Memory:          field(FieldMemory),
		HDD:             field(FieldHDD),
		VideoController: field(FieldVideoController),
		Others:          field(FieldOthers),
	}
}

// Validate returns "" when rec looks like a product row, otherwise the reason
// it was rejected.
func Validate(rec models.Record) string {
	if !HasCurrencySignal(rec.Price) {
		return RejectNoCurrency
	}
	if utf8.RuneCountInString(rec.Specifications) <= minSpecLength {
		return RejectShortSpec
	}
	if containsAny(rec.Specifications, noiseKeywords) {
		return RejectNoiseKeyword
	}
	return ""
}

// HasCurrencySignal reports whether price carries a yen marker or a
// comma-grouped amount such as 12,345.
func HasCurrencySignal(price string) bool {
	for _, sig := range currencySignals {
		if strings.Contains(price, sig) {
			return true
		}
	}
	return groupedNumber.MatchString(price)
}
