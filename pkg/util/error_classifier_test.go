package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{"), &v)
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"json", fmt.Errorf("decode: %w", syntaxErr), false, "json_decode_error"},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), false, "not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"fk", &pgconn.PgError{Code: "23503"}, false, "foreign_key_violation"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "db_error"},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"url", &url.Error{Op: "Post", URL: "http://agent", Err: errors.New("dial tcp: refused")}, true, "network_error"},
		{"refused text", errors.New("dial: connection refused"), true, "connection_error"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, kind := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(1, 3, true))
	assert.True(t, ShouldRetry(3, 3, true))
	assert.False(t, ShouldRetry(4, 3, true))
	assert.False(t, ShouldRetry(1, 3, false))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "dedup:reminder:phase:7:2026-10-17", DedupKey("reminder", "phase:7:2026-10-17"))
	assert.Equal(t, "retry:notification_created:abc", FormatRetryKey("notification_created", "abc"))
}
