package allocation

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/aristath/sipcopy/internal/utils"
)

// Snapshot column names after header normalisation
const (
	colSymbol          = "SYMBOL"
	colChange          = "%CHNG"
	colLTP             = "LTP"
	colVolume          = "VOLUME"
	colUnderlyingAsset = "UNDERLYING_ASSET"
)

// Instrument is one row of the daily market snapshot
type Instrument struct {
	Symbol          string
	LTP             float64
	ChangePct       float64
	Volume          float64
	UnderlyingAsset string
}

// ParseSnapshot reads the exchange ETF snapshot CSV
func ParseSnapshot(r io.Reader) ([]Instrument, error) {
	reader := csv.NewReader(utils.SkipBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := utils.NormalizeHeader(h)
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	for _, required := range []string{colSymbol, colChange, colLTP, colVolume, colUnderlyingAsset} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("snapshot is missing required column %s", required)
		}
	}

	cell := func(record []string, col string) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	var instruments []Instrument
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot row: %w", err)
		}

		symbol := cell(record, colSymbol)
		if symbol == "" {
			continue
		}

		instruments = append(instruments, Instrument{
			Symbol:          symbol,
			LTP:             utils.ParseNumber(cell(record, colLTP)),
			ChangePct:       utils.ParseNumber(cell(record, colChange)),
			Volume:          utils.ParseNumber(cell(record, colVolume)),
			UnderlyingAsset: cell(record, colUnderlyingAsset),
		})
	}

	return instruments, nil
}
