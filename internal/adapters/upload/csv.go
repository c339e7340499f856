// Package upload reads raw export files into the row shape the pipeline
// normalizes.
package upload

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

const bom = "\ufeff"

// ReadRows maps every record of a CSV stream to header -> value. Ragged rows
// are tolerated; malformed records are skipped and counted in the log.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]map[string]string, 0, 64)
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			skipped++
			continue
		}
		if err != nil {
			return nil, err
		}

		row := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" || i >= len(rec) {
				continue
			}
			if _, dup := row[h]; dup {
				continue
			}
			row[h] = rec[i]
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Int("rows", len(rows)).Msg("malformed csv records skipped")
	}
	return rows, nil
}
