package export

import "fmt"

// Field is a labelled value printed above the table.
type Field struct {
	Label string
	Value string
}

// Dataset is tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Summary []Field
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) validate(kind string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", kind)
	}
	return nil
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}
