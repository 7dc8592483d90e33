package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVRenderer renders a Dataset table. Title and Summary are omitted so the output stays machine readable.
type CSVRenderer struct {
	Comma rune
}

// NewCSVRenderer builds a comma-separated renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{Comma: ','}
}

// Render produces CSV bytes with a header row.
func (r *CSVRenderer) Render(data Dataset) ([]byte, error) {
	if err := data.validate("csv"); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if r.Comma != 0 {
		writer.Comma = r.Comma
	}
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(data.record(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType is the MIME type of rendered output.
func (r *CSVRenderer) ContentType() string {
	return "text/csv"
}
