package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2/google"
	firestore "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"reportview/internal/config"
	"reportview/internal/report"
)

// FirestoreStore reads shared reports and the assistant key from a Cloud
// Firestore database through its REST API. Report documents live at
// {reports}/{id}; the key is the "key" field of the first document in the
// keys collection.
type FirestoreStore struct {
	svc     *firestore.Service
	root    string
	cfg     config.FirestoreConfig
	timeout time.Duration
}

// NewFirestoreStore connects with the API key, the service account file or,
// when neither is set, application default credentials.
func NewFirestoreStore(ctx context.Context, cfg config.FirestoreConfig, timeout time.Duration, extra ...option.ClientOption) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project_id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read firestore credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, firestore.DatastoreScope)
		if err != nil {
			return nil, fmt.Errorf("parse firestore credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := firestore.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore service: %w", err)
	}

	db := cfg.DatabaseID
	if db == "" {
		db = "(default)"
	}
	return &FirestoreStore{
		svc:     svc,
		root:    fmt.Sprintf("projects/%s/databases/%s/documents", cfg.ProjectID, db),
		cfg:     cfg,
		timeout: timeout,
	}, nil
}

// fieldValue is the subset of a Firestore Value the store reads and writes.
type fieldValue struct {
	StringValue    *string `json:"stringValue,omitempty"`
	TimestampValue string  `json:"timestampValue,omitempty"`
	IntegerValue   string  `json:"integerValue,omitempty"`
	NullValue      *string `json:"nullValue,omitempty"`
}

func (v fieldValue) text() string {
	if v.StringValue != nil {
		return *v.StringValue
	}
	return v.IntegerValue
}

func (v fieldValue) time() (time.Time, error) {
	if v.TimestampValue != "" {
		return time.Parse(time.RFC3339Nano, v.TimestampValue)
	}
	if v.IntegerValue != "" {
		ms, err := strconv.ParseInt(v.IntegerValue, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, nil
}

func stringField(s string) fieldValue {
	return fieldValue{StringValue: &s}
}

func timestampField(t time.Time) fieldValue {
	if t.IsZero() {
		null := "NULL_VALUE"
		return fieldValue{NullValue: &null}
	}
	return fieldValue{TimestampValue: t.UTC().Format(time.RFC3339Nano)}
}

// documentFields converts the generated document type into plain fields.
func documentFields(doc *firestore.Document) (map[string]fieldValue, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out struct {
		Fields map[string]fieldValue `json:"fields"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func (s *FirestoreStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *FirestoreStore) reportName(id string) string {
	return s.root + "/" + s.cfg.ReportsCollection + "/" + id
}

func (s *FirestoreStore) GetReport(ctx context.Context, id string) (*report.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.svc.Projects.Databases.Documents.Get(s.reportName(id)).Context(ctx).Do()
	if isNotFound(err) {
		return nil, report.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get firestore report: %w", err)
	}

	fields, err := documentFields(doc)
	if err != nil {
		return nil, fmt.Errorf("read firestore report: %w", err)
	}
	rec := &report.Record{
		ID:        id,
		Title:     fields["reportTitle"].text(),
		Type:      report.Type(fields["reportType"].text()),
		Headers:   fields["reportHeaders"].text(),
		Data:      fields["reportData"].text(),
		CreatedBy: fields["createdBy"].text(),
		Token:     fields["token"].text(),
	}
	if rec.CreatedAt, err = fields["createdAt"].time(); err != nil {
		return nil, fmt.Errorf("read firestore report createdAt: %w", err)
	}
	if rec.ExpiresAt, err = fields["expiresAt"].time(); err != nil {
		return nil, fmt.Errorf("read firestore report expiresAt: %w", err)
	}
	return rec, nil
}

func (s *FirestoreStore) APIKey(ctx context.Context) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.svc.Projects.Databases.Documents.List(s.root, s.cfg.KeysCollection).
		PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list firestore keys: %w", err)
	}
	if len(resp.Documents) == 0 {
		return "", nil
	}
	fields, err := documentFields(resp.Documents[0])
	if err != nil {
		return "", fmt.Errorf("read firestore key: %w", err)
	}
	return fields["key"].text(), nil
}

func (s *FirestoreStore) SaveReport(ctx context.Context, rec *report.Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields := map[string]fieldValue{
		"reportTitle":   stringField(rec.Title),
		"reportType":    stringField(string(rec.Type)),
		"reportHeaders": stringField(rec.Headers),
		"reportData":    stringField(rec.Data),
		"createdBy":     stringField(rec.CreatedBy),
		"createdAt":     timestampField(rec.CreatedAt),
		"expiresAt":     timestampField(rec.ExpiresAt),
	}
	if rec.Token != "" {
		fields["token"] = stringField(rec.Token)
	}
	raw, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("encode firestore report: %w", err)
	}
	var doc firestore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encode firestore report: %w", err)
	}

	if _, err := s.svc.Projects.Databases.Documents.Patch(s.reportName(rec.ID), &doc).Context(ctx).Do(); err != nil {
		return fmt.Errorf("save firestore report: %w", err)
	}
	return nil
}

func (s *FirestoreStore) DeleteReport(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.svc.Projects.Databases.Documents.Delete(s.reportName(id)).Context(ctx).Do()
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete firestore report: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
