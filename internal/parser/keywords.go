package parser

import (
	"regexp"
	"strings"
)

// Field names a semantic column of an outlet product table.
type Field string

const (
	FieldPrice           Field = "price"
	FieldSpecifications  Field = "specifications"
	FieldOSOffice        Field = "os_office"
	FieldMemory          Field = "memory"
	FieldHDD             Field = "hdd"
	FieldOptical         Field = "optical"
	FieldVideoController Field = "video_controller"
	FieldSound           Field = "sound"
	FieldOthers          Field = "others"
)

// Fields is the order in which columns are resolved.
var Fields = []Field{
	FieldPrice,
	FieldSpecifications,
	FieldOSOffice,
	FieldMemory,
	FieldHDD,
	FieldOptical,
	FieldVideoController,
	FieldSound,
	FieldOthers,
}

// Header detection signals. A row is a header only when it carries at least
// one price signal and one spec signal.
var (
	priceSignals = []string{
		"価格",
		"\u00ec\uff98", // 価格 after a Shift-JIS page was read as Latin-1
		"price",
		"\\", // yen as rendered by JIS-Roman fonts
		"\u00a5",
		"no.",
	}

	specSignals = []string{
		"仕様",
		"spec",
		"アウトレット",
		"ｱｳﾄﾚｯﾄ",
		"\u00ef\uff82\uffbd", // leading bytes of a mis-decoded ｱｳﾄﾚｯﾄ
		"model",
	}
)

// fieldKeywords holds, per field, the header substrings that claim a column.
// Matching is case-insensitive and the first header cell hit by any term wins.
var fieldKeywords = map[Field][]string{
	FieldPrice: {
		"価格",
		"\u00ec\uff98", // mis-decoded 価格
		"price",
		"priceall",
		"\\",
		"\u00a5",
	},
	FieldSpecifications: {
		"仕様",
		"specifications",
		"spec",
		"品名",
		"ｱｳﾄﾚｯﾄ品名",
		"no.", // serial column; moved by the positional fallback
	},
	FieldOSOffice: {
		"os",
		"office",
		"ソフトウェア",
		"\uff7b\uff8b\uff84\uff73\uffa4\uff67", // ｿﾌﾄｳｪｱ as seen on re-encoded archive pages
	},
	FieldMemory: {
		"メモリ",
		"ﾒﾓﾘ",
		"memory",
		"ram",
	},
	FieldHDD: {
		"hdd",
		"ストレージ",
	},
	FieldOptical: {
		"光学",
		"optical",
		"\uff7a\uff73\uff76\uff78", // ｺｳｶﾞｸ without the voicing mark
	},
	FieldVideoController: {
		"ビデオ",
		"video",
		"graphics",
		"\uff8b\uff9e\uff83\uff75", // ﾋﾞﾃﾞｵ with the second voicing mark dropped
		"controller",
		"コントローラ",
		"ｺﾝﾄﾛｰﾗ",
	},
	FieldSound: {
		"サウンド",
		"sound",
		"audio",
		"ｻｳﾝﾄﾞ",
	},
	FieldOthers: {
		"その他",
		"other",
		"ｿﾉﾀ",
	},
}

// Keywords returns a copy of the match terms for f.
func Keywords(f Field) []string {
	return append([]string(nil), fieldKeywords[f]...)
}

// Price and noise rules for data rows.
var (
	// currencyMarkers identify a price cell during column inference.
	currencyMarkers = []string{"\\", "\u00a5", "\uffe5"}

	// currencySignals are accepted in a record's price text.
	currencySignals = []string{"\\", "\u00a5", "\uffe5", "円"}

	groupedNumber = regexp.MustCompile(`[0-9]{1,3}(,[0-9]{3})+`)

	// noiseKeywords leak into cells from broken form markup on old pages.
	noiseKeywords = []string{"submitget", "frmprodhead"}
)

const (
	maxHeaderScanRows    = 10
	minTableRows         = 2
	minDataCells         = 2
	minSpecLength        = 5
	inferredSpecMinLen   = 20
	mergedSpecMinLength  = 50
	maxLoggedRejectedRow = 4
)

// containsAny reports whether the lower-cased text contains any term.
func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func hasCurrencyMarker(text string) bool {
	for _, m := range currencyMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
