package allocation

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/aristath/sipcopy/internal/utils"
	"github.com/rs/zerolog"
)

// ReferenceEntry is the historical average daily decline of one index
type ReferenceEntry struct {
	IndexName      string
	AverageDecline float64
}

// ReferenceTable is kept in file order; matching is first-match-wins
type ReferenceTable []ReferenceEntry

// Match returns the first entry whose index name is a case-insensitive substring of label
func (t ReferenceTable) Match(label string) (ReferenceEntry, bool) {
	for _, e := range t {
		if e.IndexName == "" {
			continue
		}
		if utils.ContainsFold(label, e.IndexName) {
			return e, true
		}
	}
	return ReferenceEntry{}, false
}

// pickColumn returns the preferred column, else the first one containing any hint
func pickColumn(headers []string, preferred string, hints ...string) int {
	for i, h := range headers {
		if h == preferred {
			return i
		}
	}
	for i, h := range headers {
		for _, hint := range hints {
			if strings.Contains(h, hint) {
				return i
			}
		}
	}
	return -1
}

// ParseReferenceTable reads the index -> average decline CSV. Header names tolerate drift:
// INDEX_NAME and AVERAGE_FALL_(%) are preferred, otherwise the first column mentioning
// INDEX/NAME and FALL/AVERAGE are used.
func ParseReferenceTable(r io.Reader, log zerolog.Logger) (ReferenceTable, error) {
	reader := csv.NewReader(utils.SkipBOM(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	raw, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read reference header: %w", err)
	}

	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = utils.NormalizeHeader(h)
	}

	nameCol := pickColumn(headers, "INDEX_NAME", "INDEX", "NAME")
	declineCol := pickColumn(headers, "AVERAGE_FALL_(%)", "FALL", "AVERAGE")
	if nameCol < 0 || declineCol < 0 || nameCol == declineCol {
		return nil, fmt.Errorf("reference table needs an index name and an average fall column, got %v", headers)
	}

	var table ReferenceTable
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read reference row: %w", err)
		}
		line++

		if nameCol >= len(record) || declineCol >= len(record) {
			continue
		}
		name := strings.TrimSpace(record[nameCol])
		if name == "" {
			continue
		}

		value := strings.ReplaceAll(strings.TrimSpace(record[declineCol]), ",", "")
		value = strings.TrimSuffix(value, "%")
		decline, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(decline) || math.IsInf(decline, 0) {
			log.Warn().
				Int("line", line).
				Str("index", name).
				Str("value", record[declineCol]).
				Msg("Skipping reference row with unparseable average fall")
			continue
		}

		table = append(table, ReferenceEntry{IndexName: name, AverageDecline: decline})
	}

	return table, nil
}
