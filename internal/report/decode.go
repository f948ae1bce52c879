package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Column is one entry of the stored header mapping: a row field key and the
// label shown in the table header.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Dataset is the decoded payload of a record. Columns keep the order in
// which the header mapping was written.
type Dataset struct {
	Type    Type
	Columns []Column
	Rows    []Row
}

// Decode parses the header mapping and row array of rec. Any syntax or
// shape problem is reported as ErrMalformed.
func Decode(rec *Record) (*Dataset, error) {
	cols, err := decodeHeaders(rec.Headers)
	if err != nil {
		return nil, fmt.Errorf("%w: headers: %v", ErrMalformed, err)
	}

	var objects []map[string]any
	if err := json.Unmarshal([]byte(rec.Data), &objects); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}

	rows := make([]Row, 0, len(objects))
	for i, obj := range objects {
		if obj == nil {
			return nil, fmt.Errorf("%w: data: row %d is null", ErrMalformed, i)
		}
		row, err := NewRow(rec.Type, obj)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	return &Dataset{Type: rec.Type, Columns: cols, Rows: rows}, nil
}

// decodeHeaders walks the header object token by token so that column order
// matches the stored text. Non-string labels keep their JSON text.
func decodeHeaders(s string) ([]Column, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var cols []Column
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		label := string(raw)
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			label = str
		}
		cols = append(cols, Column{Key: key, Label: label})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after header object")
	}
	return cols, nil
}
