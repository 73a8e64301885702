package kobo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/models"
)

// pagedServer serves a fixed sequence of result pages with Next links.
func pagedServer(t *testing.T, pages [][]map[string]any) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "django_language=en", r.Header.Get("Cookie"))

		idx := 0
		if p := r.URL.Query().Get("p"); p != "" {
			fmt.Sscanf(p, "%d", &idx)
		}
		if idx >= len(pages) {
			http.NotFound(w, r)
			return
		}

		page := Page{Count: len(pages), Results: pages[idx]}
		if idx+1 < len(pages) {
			next := fmt.Sprintf("%s/?p=%d", srv.URL, idx+1)
			page.Next = &next
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	return srv
}

func newTestClient(apiURL string) *Client {
	return NewClient(Config{
		APIURL:   apiURL,
		APIToken: "secret-token",
		Language: "en",
		PageSize: 2,
	}, zap.NewNop())
}

func TestClient_FetchFirstPage(t *testing.T) {
	srv := pagedServer(t, [][]map[string]any{
		{{"_id": float64(1)}, {"_id": float64(2)}},
	})
	defer srv.Close()

	client := newTestClient(srv.URL)
	page, err := client.FetchPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Nil(t, page.Next)
}

func TestClient_PageSizeOnFirstRequest(t *testing.T) {
	var gotPageSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPageSize = r.URL.Query().Get("page_size")
		_ = json.NewEncoder(w).Encode(Page{})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2", gotPageSize)
}

func TestClient_NonOKStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchPage(context.Background(), "")

	var te *apperrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "502")
}

func TestPageIterator_WalksAllPages(t *testing.T) {
	srv := pagedServer(t, [][]map[string]any{
		{{"_id": float64(1)}, {"_id": float64(2)}},
		{{"_id": float64(3)}},
	})
	defer srv.Close()

	it := newTestClient(srv.URL).Pages()
	ctx := context.Background()

	var total int
	for {
		page, err := it.Next(ctx)
		require.NoError(t, err)
		if page == nil {
			break
		}
		total += len(page.Results)
	}
	assert.Equal(t, 3, total)

	// Exhausted iterators keep answering (nil, nil).
	page, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, page)
}

// scriptedIngester answers a fixed outcome per external id and records the
// order records arrived in.
type scriptedIngester struct {
	outcomes map[int64]models.RecordState
	seen     []int64
}

func (s *scriptedIngester) Ingest(_ context.Context, raw map[string]any) models.IngestOutcome {
	id := int64(raw["_id"].(float64))
	s.seen = append(s.seen, id)
	state, ok := s.outcomes[id]
	if !ok {
		state = models.StateCommitted
	}
	outcome := models.IngestOutcome{State: state, ExternalID: id}
	if state == models.StateRejected || state == models.StateFailed {
		outcome.Err = errors.New("constraint violated")
	}
	return outcome
}

func TestRunner_SummarizesOutcomes(t *testing.T) {
	srv := pagedServer(t, [][]map[string]any{
		{{"_id": float64(1)}, {"_id": float64(2)}},
		{{"_id": float64(3)}, {"_id": float64(4)}},
	})
	defer srv.Close()

	ingester := &scriptedIngester{outcomes: map[int64]models.RecordState{
		2: models.StateSkipped,
		3: models.StateRejected,
		4: models.StateFailed,
	}}
	runner := NewRunner(newTestClient(srv.URL), ingester, nil, zap.NewNop())

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Committed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []int64{1, 2, 3, 4}, ingester.seen)
}

func TestRunner_TransportErrorKeepsPartialSummary(t *testing.T) {
	// First page succeeds, its Next link points at a dead server.
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("p") == "1" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		next := srv.URL + "/?p=1"
		_ = json.NewEncoder(w).Encode(Page{
			Next:    &next,
			Results: []map[string]any{{"_id": float64(1)}},
		})
	}))
	defer srv.Close()

	ingester := &scriptedIngester{}
	runner := NewRunner(newTestClient(srv.URL), ingester, nil, zap.NewNop())

	summary, err := runner.Run(context.Background())

	var te *apperrors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, summary.Committed, "records ingested before the failure must be kept")
}

func TestRegisterWebhook(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token secret-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.RegisterWebhook(context.Background(), srv.URL, "https://ingest.example.org/webhook")
	require.NoError(t, err)
	assert.Equal(t, "https://ingest.example.org/webhook", gotBody["url"])
}

func TestRegisterWebhook_RejectionIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"already exists"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.RegisterWebhook(context.Background(), srv.URL, "https://ingest.example.org/webhook")

	var te *apperrors.TransportError
	require.ErrorAs(t, err, &te)
}
