package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// snapshot is the JSON document written by the report generator. Headers
// and data may be given either as JSON-encoded strings, as stored, or as
// inline JSON values.
type snapshot struct {
	ID            string          `json:"id"`
	ReportTitle   string          `json:"reportTitle"`
	ReportType    string          `json:"reportType"`
	ReportHeaders json.RawMessage `json:"reportHeaders"`
	ReportData    json.RawMessage `json:"reportData"`
	CreatedAt     time.Time       `json:"createdAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	CreatedBy     string          `json:"createdBy"`
	Token         string          `json:"token,omitempty"`
}

// ParseSnapshot reads a snapshot document into a Record. The payloads are
// validated with Decode so a broken file is rejected at import time.
func ParseSnapshot(data []byte) (*Record, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if s.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("parse snapshot: expiresAt is required")
	}

	headers, err := payloadText(s.ReportHeaders)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: reportHeaders: %w", err)
	}
	rows, err := payloadText(s.ReportData)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: reportData: %w", err)
	}

	rec := &Record{
		ID:        s.ID,
		Title:     s.ReportTitle,
		Type:      Type(s.ReportType),
		Headers:   headers,
		Data:      rows,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		CreatedBy: s.CreatedBy,
		Token:     s.Token,
	}
	if _, err := Decode(rec); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return rec, nil
}

// MarshalSnapshot is the inverse of ParseSnapshot, keeping payloads as strings.
func MarshalSnapshot(rec *Record) ([]byte, error) {
	headers, _ := json.Marshal(rec.Headers)
	rows, _ := json.Marshal(rec.Data)
	return json.MarshalIndent(snapshot{
		ID:            rec.ID,
		ReportTitle:   rec.Title,
		ReportType:    string(rec.Type),
		ReportHeaders: headers,
		ReportData:    rows,
		CreatedAt:     rec.CreatedAt,
		ExpiresAt:     rec.ExpiresAt,
		CreatedBy:     rec.CreatedBy,
		Token:         rec.Token,
	}, "", "  ")
}

func payloadText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}
