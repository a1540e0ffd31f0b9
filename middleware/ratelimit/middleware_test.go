package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quota-gateway/middleware/ratelimit/application"
	"quota-gateway/middleware/ratelimit/domain"
	"quota-gateway/middleware/ratelimit/infra"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (*domain.CounterRecord, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Store(context.Context, string, domain.CounterRecord, time.Duration) error {
	return errors.New("connection refused")
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func anonRequest(path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://example"+path, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) QuotaExceededBody {
	t.Helper()
	var body QuotaExceededBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestMiddleware_AnonymousQuotaScenario(t *testing.T) {
	clock := &testClock{now: time.Unix(1700000000, 0)}
	store := infra.NewMemoryStore(infra.WithClock(clock.Now))
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 10, MaxRequests: 2},
	})

	calls := 0
	h := Middleware(Options{Policies: table, Store: store, Now: clock.Now})(okHandler(&calls))

	// 1) e 2) passam
	for i := 0; i < 2; i++ {
		if w := serve(h, anonRequest("/api")); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
		clock.Advance(time.Second)
	}

	// 3) bloqueia
	w := serve(h, anonRequest("/api"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	body := decodeBody(t, w)
	if body.Message != "quota exceeded" || body.RequestorType != "Anonymous" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.MoreInfos != "retry in 8s" {
		t.Fatalf("expected moreInfos to carry the reset time, got %q", body.MoreInfos)
	}
	if got := w.Header().Get("Retry-After"); got != "8" {
		t.Fatalf("expected Retry-After=8, got %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected next handler to be called twice, got %d", calls)
	}

	// janela expira exatamente em início + 10s
	clock.Advance(8 * time.Second)
	if w := serve(h, anonRequest("/api")); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window reset, got %d", w.Code)
	}
}

func TestMiddleware_AnonymousKeyIncludesPath(t *testing.T) {
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 60, MaxRequests: 1},
	})
	calls := 0
	h := Middleware(Options{Policies: table, Store: infra.NewMemoryStore()})(okHandler(&calls))

	if w := serve(h, anonRequest("/a")); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for /a, got %d", w.Code)
	}
	if w := serve(h, anonRequest("/b")); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for /b (different bucket), got %d", w.Code)
	}
	if w := serve(h, anonRequest("/a")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for second /a, got %d", w.Code)
	}
}

func TestMiddleware_ReferrerAndLoggedInBuckets(t *testing.T) {
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindReferrer, WindowSeconds: 60, MaxRequests: 1},
		{Kind: domain.KindLoggedIn, WindowSeconds: 60, MaxRequests: 1},
	})
	decoder := domain.IdentityDecoderFunc(func(token string) (string, error) {
		if token == "good" {
			return "alice", nil
		}
		return "", domain.ErrInvalidCredential
	})
	calls := 0
	h := Middleware(Options{Policies: table, Store: infra.NewMemoryStore(), Decoder: decoder})(okHandler(&calls))

	withQuery := func() *http.Request { return anonRequest("/x?Referer=partner") }
	if w := serve(h, withQuery()); w.Code != http.StatusOK {
		t.Fatalf("expected first referrer request 200, got %d", w.Code)
	}
	w := serve(h, withQuery())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second referrer request 429, got %d", w.Code)
	}
	if body := decodeBody(t, w); body.RequestorType != "Referrer" {
		t.Fatalf("expected requestorType Referrer, got %q", body.RequestorType)
	}

	logged := func() *http.Request {
		r := anonRequest("/x")
		r.Header.Set("Authorization", "Bearer good")
		return r
	}
	if w := serve(h, logged()); w.Code != http.StatusOK {
		t.Fatalf("expected first logged request 200, got %d", w.Code)
	}
	w = serve(h, logged())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second logged request 429, got %d", w.Code)
	}
	if body := decodeBody(t, w); body.RequestorType != "LoggedIn" {
		t.Fatalf("expected requestorType LoggedIn, got %q", body.RequestorType)
	}

	// token inválido vira Anonymous, que não tem política: passa sempre
	for i := 0; i < 3; i++ {
		r := anonRequest("/x")
		r.Header.Set("Authorization", "Bearer bad")
		if w := serve(h, r); w.Code != http.StatusOK {
			t.Fatalf("expected anonymous bypass 200, got %d", w.Code)
		}
	}
}

func TestMiddleware_NoPolicyNeverTouchesStore(t *testing.T) {
	store := infra.NewMemoryStore()
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindReferrer, WindowSeconds: 60, MaxRequests: 1},
	})
	calls := 0
	h := Middleware(Options{Policies: table, Store: store})(okHandler(&calls))

	for i := 0; i < 5; i++ {
		if w := serve(h, anonRequest("/")); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected no counter records, got %d", store.Len())
	}
}

func TestMiddleware_NilPoliciesAdmitsEverything(t *testing.T) {
	calls := 0
	h := Middleware(Options{Store: brokenStore{}, FailurePolicy: application.FailClosed})(okHandler(&calls))

	for i := 0; i < 3; i++ {
		if w := serve(h, anonRequest("/")); w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestMiddleware_StoreFailure(t *testing.T) {
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 60, MaxRequests: 1},
	})

	calls := 0
	open := Middleware(Options{Policies: table, Store: brokenStore{}})(okHandler(&calls))
	if w := serve(open, anonRequest("/")); w.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", w.Code)
	}

	closed := Middleware(Options{
		Policies:      table,
		Store:         brokenStore{},
		FailurePolicy: application.FailClosed,
	})(okHandler(&calls))
	w := serve(closed, anonRequest("/"))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected fail-closed 503, got %d", w.Code)
	}
	if body := decodeBody(t, w); body.Message != "rate limiter unavailable" {
		t.Fatalf("unexpected body %+v", body)
	}
	if calls != 1 {
		t.Fatalf("expected only the fail-open request to reach the handler, got %d", calls)
	}
}

func TestMiddleware_RateLimitHeaders(t *testing.T) {
	clock := &testClock{now: time.Unix(1700000000, 0)}
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 60, MaxRequests: 3},
	})
	calls := 0
	h := Middleware(Options{
		Policies:            table,
		Store:               infra.NewMemoryStore(infra.WithClock(clock.Now)),
		Now:                 clock.Now,
		AddRateLimitHeaders: true,
	})(okHandler(&calls))

	w := serve(h, anonRequest("/"))
	if got := w.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected X-RateLimit-Limit=3, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected X-RateLimit-Remaining=2, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got != "1700000060" {
		t.Fatalf("expected X-RateLimit-Reset=1700000060, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Kind"); got != "Anonymous" {
		t.Fatalf("expected X-RateLimit-Kind=Anonymous, got %q", got)
	}
}

func TestMiddleware_RecordsStats(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 60, MaxRequests: 1},
	})
	calls := 0
	h := Middleware(Options{Policies: table, Store: infra.NewMemoryStore(), Stats: stats})(okHandler(&calls))

	serve(h, anonRequest("/s"))
	serve(h, anonRequest("/s"))

	if got := stats.Total(); got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if got := stats.ByRoute()["GET /s"]; got.Denied != 1 {
		t.Fatalf("unexpected route stats %+v", got)
	}
}

func TestMiddleware_AtomicModeWithMemoryStore(t *testing.T) {
	table := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 60, MaxRequests: 5},
	})
	var mu sync.Mutex
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	h := Middleware(Options{Policies: table, Store: infra.NewMemoryStore(), Atomic: true})(next)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(h, anonRequest("/hot"))
		}()
	}
	wg.Wait()

	if calls != 5 {
		t.Fatalf("expected exactly 5 admitted requests, got %d", calls)
	}
}
