package allocation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var allocationHeader = []string{
	"SYMBOL", "UNDERLYING_ASSET", "MATCHED_INDEX", "LTP", "%CHNG", "VOLUME",
	"AVG_FALL", "SEVERITY", "INITIAL_ALLOCATION", "ALLOCATED_AMOUNT", "QTY", "FINAL_AMOUNT",
}

// WriteAllocationsCSV writes the day's selection as a CSV artifact
func WriteAllocationsCSV(w io.Writer, allocations []Allocation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(allocationHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	for _, a := range allocations {
		matched := ""
		if a.MatchedIndex != nil {
			matched = *a.MatchedIndex
		}
		row := []string{
			a.Symbol,
			a.UnderlyingAsset,
			matched,
			f(a.LTP),
			f(a.ChangePct),
			strconv.FormatFloat(a.Volume, 'f', 0, 64),
			f(a.AverageDecline),
			strconv.FormatFloat(a.Severity, 'f', 4, 64),
			f(a.InitialAmount),
			f(a.AllocatedAmount),
			strconv.FormatInt(a.Quantity, 10),
			f(a.FinalAmount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.Symbol, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
