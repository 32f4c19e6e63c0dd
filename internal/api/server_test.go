package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/logging"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/source/email"
	"github.com/nhle/swipemail/internal/store"
	"github.com/nhle/swipemail/tests/testutil"
)

type fakeSource struct {
	cfg      email.Config
	items    []model.Item
	err      error
	validErr error
}

func (f *fakeSource) Type() source.SourceType { return source.SourceTypeEmail }

func (f *fakeSource) ValidateConnection(context.Context) (string, error) {
	if f.validErr != nil {
		return "", f.validErr
	}
	return "Connection successful", nil
}

func (f *fakeSource) FetchItems(context.Context, source.FetchOptions) ([]model.Item, error) {
	return f.items, f.err
}

// blockingLimiter never hands out a token.
type blockingLimiter struct{}

func (blockingLimiter) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	store  *store.SQLiteStore
	server *Server
	src    *fakeSource
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s := testutil.NewTestStore(t)
	d := dispatch.New(s, dispatch.WithLogger(logging.Discard()))
	f := &fixture{store: s, src: &fakeSource{}}
	base := []Option{
		WithLogger(logging.Discard()),
		WithSourceFactory(func(cfg email.Config) source.Source {
			f.src.cfg = cfg
			return f.src
		}),
	}
	f.server = NewServer(s, d, append(base, opts...)...)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListItems(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.store, "older", 0)
	b := testutil.SeedItem(t, f.store, "newer", 5)
	_, err := f.store.TransitionItem(context.Background(), b.ID, model.StatusLater)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Item](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/items?status=inbox", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]model.Item](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "older", items[0].Subject)

	rec = f.do(t, http.MethodGet, "/items?subject=new&since=2024-03-15T09:01:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Item](t, rec), 1)
}

func TestListItemsBadQuery(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"status=spam", "since=yesterday", "limit=-1", "offset=x"} {
		rec := f.do(t, http.MethodGet, "/items?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error, q)
	}
}

func TestGetItem(t *testing.T) {
	f := newFixture(t)
	a := testutil.SeedItem(t, f.store, "A", 0)

	rec := f.do(t, http.MethodGet, "/items/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", decode[model.Item](t, rec).Subject)

	rec = f.do(t, http.MethodGet, "/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	a := testutil.SeedItem(t, f.store, "A", 0)
	path := "/items/" + a.ID + "/status"

	rec := f.do(t, http.MethodPatch, path, statusRequest{Status: "archived"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusArchived, decode[model.Item](t, rec).Status)

	// Double submit returns the item unchanged and counts once.
	rec = f.do(t, http.MethodPatch, path, statusRequest{Status: "archived"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusArchived, decode[model.Item](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Stats{ProcessedToday: 1, Archived: 1}, decode[model.Stats](t, rec))
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	a := testutil.SeedItem(t, f.store, "A", 0)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"missing status", "/items/" + a.ID + "/status", map[string]string{}, http.StatusBadRequest},
		{"invalid status", "/items/" + a.ID + "/status", statusRequest{Status: "spam"}, http.StatusBadRequest},
		{"no body", "/items/" + a.ID + "/status", nil, http.StatusBadRequest},
		{"unknown item", "/items/missing/status", statusRequest{Status: "later"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestUndoAndActivities(t *testing.T) {
	f := newFixture(t)
	a := testutil.SeedItem(t, f.store, "A", 0)

	f.do(t, http.MethodPatch, "/items/"+a.ID+"/status", statusRequest{Status: "later"})
	rec := f.do(t, http.MethodPost, "/items/"+a.ID+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusInbox, decode[model.Item](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/items/missing/undo", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/activities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acts := decode[[]model.Activity](t, rec)
	require.Len(t, acts, 2)
	assert.Equal(t, model.ActionUndone, acts[0].Action)
	assert.Equal(t, model.ActionLater, acts[1].Action)
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)
	a := testutil.SeedItem(t, f.store, "A", 0)

	rec := f.do(t, http.MethodDelete, "/items/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SuccessResponse](t, rec).Success)

	rec = f.do(t, http.MethodDelete, "/items/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsLazilyZero(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processedToday":0,"forLater":0,"archived":0}`, rec.Body.String())
}

func TestProviders(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/email/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]email.Provider](t, rec)
	assert.Equal(t, "imap.mail.me.com", got["icloud"].Host)
	assert.Len(t, got, 4)
}

func TestEmailTest(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/email/test", mailboxRequest{Provider: "gmail", User: "me@gmail.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, TestResult{Success: true, Message: "Connection successful"}, decode[TestResult](t, rec))
	assert.Equal(t, "imap.gmail.com", f.src.cfg.Host)
	assert.Equal(t, 993, f.src.cfg.Port)
	assert.Equal(t, "me@gmail.com", f.src.cfg.Username)

	f.src.validErr = errors.New("bad credentials")
	rec = f.do(t, http.MethodPost, "/email/test", mailboxRequest{Provider: "gmail", User: "me@gmail.com", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[TestResult](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, "bad credentials", res.Message)
}

func TestEmailEndpointsValidate(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/email/test", "/email/fetch"} {
		rec := f.do(t, http.MethodPost, path, mailboxRequest{Provider: "gmail", User: "me"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)

		rec = f.do(t, http.MethodPost, path, mailboxRequest{Provider: "aol", User: "me", Password: "pw"})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "Unsupported email provider", decode[ErrorResponse](t, rec).Error)
	}
}

func TestEmailFetch(t *testing.T) {
	f := newFixture(t)
	ext1, ext2 := "INBOX:1", "INBOX:2"
	f.src.items = []model.Item{
		{Sender: "A", Subject: "one", ExternalID: &ext1},
		{Sender: "B", Subject: "two", ExternalID: &ext2},
	}
	req := mailboxRequest{Provider: "outlook", User: "me@outlook.com", Password: "pw"}

	rec := f.do(t, http.MethodPost, "/email/fetch", req)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[FetchResult](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Items, 2)
	assert.NotEmpty(t, res.Items[0].ID)

	rec = f.do(t, http.MethodPost, "/email/fetch", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[FetchResult](t, rec).Count)

	f.src.err = &source.AuthError{SourceType: source.SourceTypeEmail, Message: "nope"}
	rec = f.do(t, http.MethodPost, "/email/fetch", req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimited(t *testing.T) {
	f := newFixture(t, WithLimiter(blockingLimiter{}))
	rec := f.do(t, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/items/abc/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
