package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocateHeader(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]string
		expected int
		found    bool
	}{
		{
			name:     "japanese header on first row",
			rows:     [][]string{{"価格", "仕様"}, {"¥100,000", "OptiPlex 7000"}},
			expected: 0,
			found:    true,
		},
		{
			name:     "english header is case insensitive",
			rows:     [][]string{{"PRICE", "Specifications"}},
			expected: 0,
			found:    true,
		},
		{
			name:     "half-width katakana outlet with serial column",
			rows:     [][]string{{"No.", "ｱｳﾄﾚｯﾄ", "ﾒﾓﾘ"}},
			expected: 0,
			found:    true,
		},
		{
			name:     "header below a banner row",
			rows:     [][]string{{"Dell Outlet"}, {"お知らせ", ""}, {"モデル", "\\ 価格", "Model"}},
			expected: 2,
			found:    true,
		},
		{
			name:     "mis-decoded labels",
			rows:     [][]string{{"\u00ec\uff98", "\u00ef\uff82\uffbd\u00ef"}},
			expected: 0,
			found:    true,
		},
		{
			name:  "price alone is not a header",
			rows:  [][]string{{"価格", "返品について"}, {"¥1,000", "送料"}},
			found: false,
		},
		{
			name:  "spec alone is not a header",
			rows:  [][]string{{"仕様", "備考"}},
			found: false,
		},
		{
			name:  "empty table",
			rows:  nil,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, found := LocateHeader(tt.rows)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.expected, idx)
			} else {
				assert.Equal(t, -1, idx)
			}
		})
	}
}

func TestLocateHeaderScansOnlyTenRows(t *testing.T) {
	rows := make([][]string, 0, 12)
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{"filler", "row"})
	}
	rows = append(rows, []string{"価格", "仕様"})

	_, found := LocateHeader(rows)
	assert.False(t, found)

	idx, found := LocateHeader(rows[1:])
	assert.True(t, found)
	assert.Equal(t, 9, idx)
}
