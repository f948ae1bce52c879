package report

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"reportview/internal/logging"
)

// Repository reads shared report records.
type Repository interface {
	GetReport(ctx context.Context, id string) (*Record, error)
}

// CredentialProvider supplies the assistant API key. An empty key with a
// nil error means none is configured.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// Loader fetches a record and the assistant credential together and
// applies the access checks.
type Loader struct {
	repo   Repository
	creds  CredentialProvider
	logger *logging.Logger
	now    func() time.Time
}

// NewLoader creates a loader. creds may be nil, which leaves every loaded
// report without an assistant.
func NewLoader(repo Repository, creds CredentialProvider, logger *logging.Logger) *Loader {
	return &Loader{
		repo:   repo,
		creds:  creds,
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the report with id, or an *AccessError (possibly wrapped)
// describing why it cannot be shown. Checks run in a fixed order:
// existence, token, expiration, then payload format.
func (l *Loader) Load(ctx context.Context, id, token string) (*Report, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	logger := l.logger.WithContext("report", id)

	var (
		rec    *Record
		apiKey string
		g      errgroup.Group
	)
	g.Go(func() error {
		r, err := l.repo.GetReport(ctx, id)
		if errors.Is(err, ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if r == nil {
			return ErrNotFound
		}
		rec = r
		return nil
	})
	g.Go(func() error {
		if l.creds == nil {
			return nil
		}
		key, err := l.creds.APIKey(ctx)
		if err != nil {
			logger.Warn("assistant credential unavailable: %v", err)
			return nil
		}
		if key == "" {
			logger.Warn("no assistant credential configured")
		}
		apiKey = key
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrUnavailable) {
			logger.Error("failed to fetch report: %v", err)
		}
		return nil, err
	}

	if rec.Token != "" && subtle.ConstantTimeCompare([]byte(rec.Token), []byte(token)) != 1 {
		logger.Info("token mismatch")
		return nil, ErrAccessDenied
	}
	if rec.Expired(l.now()) {
		logger.Info("link expired at %s", rec.ExpiresAt.Format(time.RFC3339))
		return nil, ErrExpired
	}

	ds, err := Decode(rec)
	if err != nil {
		logger.Error("failed to decode payload: %v", err)
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"type":      string(rec.Type),
		"rows":      len(ds.Rows),
		"assistant": apiKey != "",
	}).Debug("report loaded")

	return &Report{Record: *rec, Dataset: ds, APIKey: apiKey}, nil
}
