package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/outlet-scraper/internal/models"
)

var ErrNilDocument = errors.New("nil document")

// Extractor turns a document tree into product records. Implementations never
// fail on content: a page without matching tables yields an empty slice.
type Extractor interface {
	Name() string
	Extract(root *goquery.Selection) []models.Record
}

// ExtractHTML parses html and runs e over the whole document.
func ExtractHTML(e Extractor, html string) ([]models.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ExtractDocument(e, doc)
}

// ExtractDocument runs e over doc.
func ExtractDocument(e Extractor, doc *goquery.Document) ([]models.Record, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	return e.Extract(doc.Selection), nil
}

const DellOutletName = "dell-outlet"

// DellOutletExtractor reads the price/specification tables of Dell outlet
// listings, including the Shift-JIS era archive pages.
type DellOutletExtractor struct {
	logger *slog.Logger
}

func NewDellOutletExtractor(logger *slog.Logger) *DellOutletExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DellOutletExtractor{
		logger: logger.With("component", "extractor", "extractor", DellOutletName),
	}
}

func (e *DellOutletExtractor) Name() string {
	return DellOutletName
}

// Extract walks every table under root in document order.
func (e *DellOutletExtractor) Extract(root *goquery.Selection) []models.Record {
	records := make([]models.Record, 0)
	if root == nil {
		return records
	}

	tables := root.Find("table")
	e.logger.Debug("scanning tables", "count", tables.Length())

	tables.Each(func(i int, table *goquery.Selection) {
		records = append(records, e.extractTable(i, table)...)
	})

	e.logger.Debug("extraction finished", "records", len(records))
	return records
}

func (e *DellOutletExtractor) extractTable(tableIdx int, table *goquery.Selection) []models.Record {
	rows := table.Find("tr")
	if rows.Length() < minTableRows {
		return nil
	}

	limit := rows.Length()
	if limit > maxHeaderScanRows {
		limit = maxHeaderScanRows
	}
	candidates := make([][]string, 0, limit)
	for r := 0; r < limit; r++ {
		candidates = append(candidates, cellTexts(rows.Eq(r).Find("td, th")))
	}

	headerIdx, ok := LocateHeader(candidates)
	if !ok {
		return nil
	}
	headers := candidates[headerIdx]
	e.logger.Debug("product header found", "table", tableIdx, "row", headerIdx, "headers", strings.Join(headers, " | "))

	state := newTableState()
	mapping := MapColumns(headers)
	if headerIdx+1 < rows.Length() {
		_, hadPrice := mapping.Index(FieldPrice)
		specBefore, hadSpec := mapping.Index(FieldSpecifications)

		mapping.InferFromFirstRow(cellTexts(rows.Eq(headerIdx + 1).Find("td")))

		if idx, ok := mapping.Index(FieldPrice); ok && !hadPrice {
			e.logger.Debug("inferred price column", "table", tableIdx, "index", idx)
		}
		if idx, ok := mapping.Index(FieldSpecifications); ok && (!hadSpec || idx != specBefore) {
			e.logger.Debug("inferred specifications column", "table", tableIdx, "index", idx)
		}
	}
	state.ready(mapping)
	e.logger.Debug("column indices", "table", tableIdx, "mapping", mapping)

	var records []models.Record
	for i := headerIdx + 1; i < rows.Length(); i++ {
		cells := cellTexts(rows.Eq(i).Find("td"))
		rec, reason := state.row(cells)
		if reason == "" {
			records = append(records, rec)
			continue
		}
		if i <= headerIdx+maxLoggedRejectedRow {
			e.logger.Debug("row rejected",
				"table", tableIdx,
				"row", i,
				"reason", reason,
				"price", truncate(rec.Price, 20),
				"spec_len", len([]rune(rec.Specifications)))
		}
	}
	if state.repaired {
		e.logger.Debug("merged price/specifications column applied", "table", tableIdx, "mapping", state.mapping)
	}
	return records
}

func cellTexts(cells *goquery.Selection) []string {
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		texts = append(texts, CleanText(c))
	})
	return texts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
