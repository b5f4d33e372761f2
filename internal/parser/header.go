package parser

// LocateHeader returns the index of the first row, among the first ten, whose
// cells carry both a price signal and a spec signal. Rows with only one of the
// two are ignored so that unrelated tables (return policies, shipping notes)
// are not mistaken for product listings.
func LocateHeader(rows [][]string) (int, bool) {
	limit := len(rows)
	if limit > maxHeaderScanRows {
		limit = maxHeaderScanRows
	}

	for i := 0; i < limit; i++ {
		if hasPriceSignal(rows[i]) && hasSpecSignal(rows[i]) {
			return i, true
		}
	}
	return -1, false
}

func hasPriceSignal(cells []string) bool {
	for _, c := range cells {
		if containsAny(c, priceSignals) {
			return true
		}
	}
	return false
}

func hasSpecSignal(cells []string) bool {
	for _, c := range cells {
		if containsAny(c, specSignals) {
			return true
		}
	}
	return false
}
