package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"setlistbot/internal/bot"
)

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle("POST", "/only-post", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/only-post", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for GET, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/only-post", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for POST, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle("GET", "/ordered", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ordered", nil))

		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})

	t.Run("handler routes registration", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(&HealthHandler{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"ok":true`) {
			t.Errorf("unexpected health body %q", rec.Body.String())
		}
	})
}

// collectingDispatcher records dispatched updates.
type collectingDispatcher struct {
	mu      sync.Mutex
	updates []bot.Update
}

func (d *collectingDispatcher) HandleUpdate(ctx context.Context, update bot.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, update)
}

func (d *collectingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.updates)
}

func TestWebhookHandler(t *testing.T) {
	const secret = "hook-secret"
	updateJSON := `{"update_id": 7, "message": {"message_id": 1, "text": "hi", "chat": {"id": 42}}}`

	t.Run("valid secret dispatches update", func(t *testing.T) {
		dispatcher := &collectingDispatcher{}
		handler := NewWebhookHandler(secret, dispatcher, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/"+secret, strings.NewReader(updateJSON))
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "ok" {
			t.Errorf("expected ok body, got %q", rec.Body.String())
		}

		// dispatch happens on its own goroutine
		deadline := time.Now().Add(time.Second)
		for dispatcher.count() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if dispatcher.count() != 1 {
			t.Fatalf("expected 1 dispatched update, got %d", dispatcher.count())
		}
		if dispatcher.updates[0].Message.Chat.ID != 42 {
			t.Errorf("unexpected update %+v", dispatcher.updates[0])
		}
	})

	t.Run("wrong secret is forbidden", func(t *testing.T) {
		dispatcher := &collectingDispatcher{}
		handler := NewWebhookHandler(secret, dispatcher, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/wrong", strings.NewReader(updateJSON))
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}

		time.Sleep(20 * time.Millisecond)
		if dispatcher.count() != 0 {
			t.Error("nothing must be dispatched on secret mismatch")
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		dispatcher := &collectingDispatcher{}
		handler := NewWebhookHandler(secret, dispatcher, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/"+secret, strings.NewReader("{broken"))
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("get is not allowed", func(t *testing.T) {
		handler := NewWebhookHandler(secret, &collectingDispatcher{}, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/"+secret, nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

// fakeAuthorizer is a test double for the Spotify OAuth surface.
type fakeAuthorizer struct {
	token       *oauth2.Token
	exchangeErr error
	authErr     error
	authedWith  map[string]string
	gotCode     string
}

func (f *fakeAuthorizer) GetAuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeAuthorizer) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.gotCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeAuthorizer) Authenticate(ctx context.Context, credentials map[string]string) error {
	f.authedWith = credentials
	return f.authErr
}

type fakeTokenSaver struct {
	saved string
	err   error
}

func (f *fakeTokenSaver) SaveToken(refreshToken string) error {
	f.saved = refreshToken
	return f.err
}

func TestOAuthHandler(t *testing.T) {
	t.Run("login redirects to consent page", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeAuthorizer{}, &fakeTokenSaver{}, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		location := rec.Header().Get("Location")
		if !strings.Contains(location, "accounts.example.com") {
			t.Errorf("expected redirect to consent page, got %s", location)
		}
		if !strings.Contains(location, handler.state) {
			t.Error("expected state in redirect URL")
		}
	})

	t.Run("callback stores refresh token and activates it", func(t *testing.T) {
		authorizer := &fakeAuthorizer{token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt-1"}}
		saver := &fakeTokenSaver{}
		handler := NewOAuthHandler(authorizer, saver, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state="+handler.state, nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if authorizer.gotCode != "abc" {
			t.Errorf("expected code abc exchanged, got %q", authorizer.gotCode)
		}
		if saver.saved != "rt-1" {
			t.Errorf("expected refresh token persisted, got %q", saver.saved)
		}
		if authorizer.authedWith["refresh_token"] != "rt-1" {
			t.Errorf("expected service re-authenticated, got %v", authorizer.authedWith)
		}
	})

	t.Run("callback without refresh token fails", func(t *testing.T) {
		authorizer := &fakeAuthorizer{token: &oauth2.Token{AccessToken: "at"}}
		handler := NewOAuthHandler(authorizer, &fakeTokenSaver{}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state="+handler.state, nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("callback rejects bad state", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeAuthorizer{}, &fakeTokenSaver{}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=attacker", nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("callback requires code", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeAuthorizer{}, &fakeTokenSaver{}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?state="+handler.state, nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("callback surfaces provider error", func(t *testing.T) {
		handler := NewOAuthHandler(&fakeAuthorizer{}, &fakeTokenSaver{}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "access_denied") {
			t.Errorf("expected provider error echoed, got %q", rec.Body.String())
		}
	})
}
