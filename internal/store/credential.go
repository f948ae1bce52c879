package store

import (
	"context"

	"reportview/internal/report"
)

// StaticCredential returns a configured key and only consults Fallback when
// the key is empty.
type StaticCredential struct {
	Key      string
	Fallback report.CredentialProvider
}

func (c StaticCredential) APIKey(ctx context.Context) (string, error) {
	if c.Key != "" || c.Fallback == nil {
		return c.Key, nil
	}
	return c.Fallback.APIKey(ctx)
}
