package cartsync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/pkg/httputil"
	"github.com/gothglitter/storefront/pkg/logger"
)

// fakeStorefront is an in-memory backend with the storefront's hold
// semantics: reserve creates a pending hold, add commits pending holds
// (reserving fresh stock for the rest), remove moves committed back to
// pending, release returns a pending (else committed) unit to stock.
type fakeStorefront struct {
	mu        sync.Mutex
	stock     map[string]int
	pending   map[string]map[string]int
	committed map[string]map[string]int
	calls     map[string]int
	fail      map[string]int
	intents   []paymentIntentRequest
}

func newFakeStorefront(stock map[string]int) *fakeStorefront {
	f := &fakeStorefront{
		stock:     map[string]int{},
		pending:   map[string]map[string]int{},
		committed: map[string]map[string]int{},
		calls:     map[string]int{},
		fail:      map[string]int{},
	}
	for k, v := range stock {
		f.stock[k] = v
	}
	return f
}

func (f *fakeStorefront) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/inventory/{id}/reserve", f.handle("reserve", f.reserve))
	r.Post("/api/inventory/{id}/release", f.handle("release", f.release))
	r.Get("/api/inventory/{id}/available", f.handle("available", f.available))
	r.Post("/api/cart/clear", f.handle("clear", f.clear))
	r.Post("/api/cart/touch", f.handle("touch", func(string, *http.Request) (any, error) { return true, nil }))
	r.Post("/api/cart/{id}/add", f.handle("add", f.add))
	r.Post("/api/cart/{id}/remove", f.handle("remove", f.remove))
	r.Get("/api/cart/{id}/qty", f.handle("qty", f.qty))
	r.Get("/api/cart", f.handle("items", f.items))
	r.Post("/api/create-payment-intent", f.createIntent)
	return r
}

// createIntent answers like the payment relay: a bare {clientSecret} on
// success, the error envelope otherwise.
func (f *fakeStorefront) createIntent(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["intent"]++
	if status := f.fail["intent"]; status != 0 {
		httputil.WriteJSON(w, status, httputil.Response{Error: &httputil.ErrorResponse{Code: "PAYMENT_FAILED", Message: "card declined"}})
		return
	}
	var req paymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount < 50 {
		httputil.WriteError(w, r, apperrors.InvalidInput("amount must be at least 50"), logger.Discard())
		return
	}
	f.intents = append(f.intents, req)
	httputil.WriteJSON(w, http.StatusOK, paymentIntentResponse{ClientSecret: "pi_fake_secret_" + uuid.NewString()})
}

func (f *fakeStorefront) Intents() []paymentIntentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]paymentIntentRequest(nil), f.intents...)
}

func (f *fakeStorefront) handle(name string, fn func(sid string, r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie("SESSION"); err == nil {
			sid = c.Value
		} else {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: sid, Path: "/"})
		}

		f.mu.Lock()
		f.calls[name]++
		status := f.fail[name]
		if status != 0 {
			f.mu.Unlock()
			httputil.WriteJSON(w, status, httputil.Response{Error: &httputil.ErrorResponse{Code: "BOOM", Message: "injected"}})
			return
		}
		v, err := fn(sid, r)
		f.mu.Unlock()
		if err != nil {
			httputil.WriteError(w, r, err, logger.Discard())
			return
		}
		httputil.WriteData(w, v)
	}
}

func (f *fakeStorefront) holds(m map[string]map[string]int, sid string) map[string]int {
	if m[sid] == nil {
		m[sid] = map[string]int{}
	}
	return m[sid]
}

func (f *fakeStorefront) reserve(sid string, r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")
	if f.stock[id] <= 0 {
		return nil, apperrors.Exhausted(id)
	}
	f.stock[id]--
	f.holds(f.pending, sid)[id]++
	return f.stock[id], nil
}

func (f *fakeStorefront) release(sid string, r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")
	p, c := f.holds(f.pending, sid), f.holds(f.committed, sid)
	switch {
	case p[id] > 0:
		p[id]--
	case c[id] > 0:
		c[id]--
	default:
		return f.stock[id], nil
	}
	f.stock[id]++
	return f.stock[id], nil
}

func (f *fakeStorefront) available(_ string, r *http.Request) (any, error) {
	return f.stock[chi.URLParam(r, "id")], nil
}

func (f *fakeStorefront) add(sid string, r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")
	n := queryInt(r)
	p, c := f.holds(f.pending, sid), f.holds(f.committed, sid)
	for i := 0; i < n; i++ {
		switch {
		case p[id] > 0:
			p[id]--
		case f.stock[id] > 0:
			f.stock[id]--
		default:
			return c[id], nil
		}
		c[id]++
	}
	return c[id], nil
}

func (f *fakeStorefront) remove(sid string, r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")
	n := min(queryInt(r), f.holds(f.committed, sid)[id])
	f.committed[sid][id] -= n
	f.holds(f.pending, sid)[id] += n
	return f.committed[sid][id], nil
}

func (f *fakeStorefront) qty(sid string, r *http.Request) (any, error) {
	return f.holds(f.committed, sid)[chi.URLParam(r, "id")], nil
}

func (f *fakeStorefront) items(sid string, _ *http.Request) (any, error) {
	out := map[string]int{}
	for id, q := range f.holds(f.committed, sid) {
		if q > 0 {
			out[id] = q
		}
	}
	return out, nil
}

func (f *fakeStorefront) clear(sid string, _ *http.Request) (any, error) {
	for _, m := range []map[string]int{f.holds(f.pending, sid), f.holds(f.committed, sid)} {
		for id, q := range m {
			f.stock[id] += q
			delete(m, id)
		}
	}
	return true, nil
}

func queryInt(r *http.Request) int {
	n := 0
	for _, ch := range r.URL.Query().Get("qty") {
		n = n*10 + int(ch-'0')
	}
	return n
}

func (f *fakeStorefront) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStorefront) Stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

// Committed sums committed units of id across sessions.
func (f *fakeStorefront) Committed(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, m := range f.committed {
		total += m[id]
	}
	return total
}

func (f *fakeStorefront) Pending(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, m := range f.pending {
		total += m[id]
	}
	return total
}

// CommitDirect puts units straight into every known session's cart, as
// another tab of the same session would.
func (f *fakeStorefront) CommitDirect(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid := range f.committed {
		f.committed[sid][id] += n
	}
}

func (f *fakeStorefront) Fail(name string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = status
}

type harness struct {
	shop   *fakeStorefront
	server *httptest.Server
	sess   *Session
	events *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RequestTimeout = 2 * time.Second
	cfg.ReadRetries = 0
	cfg.PollInterval = 20 * time.Millisecond
	return cfg
}

func newHarness(t *testing.T, stock map[string]int) *harness {
	t.Helper()
	shop := newFakeStorefront(stock)
	srv := httptest.NewServer(shop.Handler())
	t.Cleanup(srv.Close)

	sess, err := NewSession(testConfig(srv.URL), logger.Discard())
	require.NoError(t, err)

	log := &eventLog{}
	sess.Bus.Subscribe(log.add)
	return &harness{shop: shop, server: srv, sess: sess, events: log}
}
