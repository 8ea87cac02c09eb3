package reward

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
)

func TestAwardXP_Posts(t *testing.T) {
	var got awardRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	l := NewWebhookLedger(srv.URL, "secret", zerolog.Nop())
	err := l.AwardXP(context.Background(), "u1", "T1", EventGenerateProject)
	require.NoError(t, err)
	assert.Equal(t, awardRequest{UserID: "u1", TeamID: "T1", EventKind: "GENERATE_PROJECT"}, got)
}

func TestAwardXP_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	l := NewWebhookLedger(srv.URL, "", zerolog.Nop())
	err := l.AwardXP(context.Background(), "u1", "T1", EventGenerateProject)
	require.Error(t, err)
	assert.False(t, derrors.IsRetryable(err))
}

func TestAwardXP_Unreachable(t *testing.T) {
	l := NewWebhookLedger("http://127.0.0.1:1", "", zerolog.Nop())
	err := l.AwardXP(context.Background(), "u1", "T1", EventGenerateProject)
	assert.ErrorIs(t, err, derrors.ErrRewardDispatch)
}

func TestNoopLedger(t *testing.T) {
	assert.NoError(t, NoopLedger{}.AwardXP(context.Background(), "u1", "T1", EventGenerateProject))
}
