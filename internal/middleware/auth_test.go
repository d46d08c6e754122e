package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dchat/internal/testutil"
)

func authedHandler(t *testing.T, wantUserID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			t.Error("expected user id in context")
		}
		if userID != wantUserID {
			t.Errorf("expected user id %q, got %q", wantUserID, userID)
		}
		if _, ok := GetSession(r.Context()); !ok {
			t.Error("expected session in context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_ValidBearerToken(t *testing.T) {
	sessionRepo := testutil.NewMockSessionRepository()
	session := testutil.NewTestSession(testutil.WithToken("tok-1"), testutil.WithSessionUserID("user-1"))
	sessionRepo.Sessions["tok-1"] = session

	handler := Auth(sessionRepo)(authedHandler(t, "user-1"))

	req := testutil.NewRequestWithBearer(t, http.MethodGet, "/api/v1/auth/me", "tok-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
}

func TestAuth_QueryParameterToken(t *testing.T) {
	sessionRepo := testutil.NewMockSessionRepository()
	sessionRepo.Sessions["tok-1"] = testutil.NewTestSession(testutil.WithToken("tok-1"), testutil.WithSessionUserID("user-1"))

	handler := Auth(sessionRepo)(authedHandler(t, "user-1"))

	req := httptest.NewRequest(http.MethodGet, "/ws?token=tok-1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
}

func TestAuth_MissingToken(t *testing.T) {
	handler := Auth(testutil.NewMockSessionRepository())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := Auth(testutil.NewMockSessionRepository())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := testutil.NewRequestWithBearer(t, http.MethodGet, "/api/v1/auth/me", "bad-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
}

func TestAuth_ExpiredSession(t *testing.T) {
	sessionRepo := testutil.NewMockSessionRepository()
	sessionRepo.Sessions["tok-old"] = testutil.NewTestSession(testutil.WithToken("tok-old"), testutil.WithExpired())

	handler := Auth(sessionRepo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := testutil.NewRequestWithBearer(t, http.MethodGet, "/api/v1/auth/me", "tok-old")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
}

func TestOptionalAuth_AnonymousAllowed(t *testing.T) {
	handler := OptionalAuth(testutil.NewMockSessionRepository())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserID(r.Context()); ok {
			t.Error("expected no user id for anonymous request")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
}

func TestOptionalAuth_ValidToken(t *testing.T) {
	sessionRepo := testutil.NewMockSessionRepository()
	sessionRepo.Sessions["tok-1"] = testutil.NewTestSession(testutil.WithToken("tok-1"), testutil.WithSessionUserID("user-1"))

	handler := OptionalAuth(sessionRepo)(authedHandler(t, "user-1"))

	req := httptest.NewRequest(http.MethodGet, "/ws?token=tok-1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusOK)
}

func TestOptionalAuth_BadTokenRejected(t *testing.T) {
	handler := OptionalAuth(testutil.NewMockSessionRepository())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token=bad", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	testutil.AssertStatusCode(t, w, http.StatusUnauthorized)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	testutil.AssertEqual(t, BearerToken(req), "")

	req.Header.Set("Authorization", "Bearer abc123")
	testutil.AssertEqual(t, BearerToken(req), "abc123")

	// Header wins over the query parameter
	req = httptest.NewRequest(http.MethodGet, "/?token=from-query", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	testutil.AssertEqual(t, BearerToken(req), "from-header")

	// Non-bearer schemes fall through to the query parameter
	req = httptest.NewRequest(http.MethodGet, "/?token=from-query", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	testutil.AssertEqual(t, BearerToken(req), "from-query")
}
