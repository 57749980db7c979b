package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct {
	email string
	err   error
}

func (f fakeVerifier) VerifyEmail(ctx context.Context, rawToken string) (string, error) {
	return f.email, f.err
}

func echoEmailHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserEmail(r.Context())))
	})
}

func TestMiddlewareMissingHeader(t *testing.T) {
	h := Middleware(fakeVerifier{email: "a@b.com"}, nil, nil)(echoEmailHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareInvalidToken(t *testing.T) {
	h := Middleware(fakeVerifier{err: errors.New("expired")}, nil, nil)(echoEmailHandler())

	// A structurally valid JWT so the rejection path can report the email
	// the token asserted.
	token := signedToken(t, jwt.MapClaims{"email": "someone@example.com"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareWhitelist(t *testing.T) {
	whitelist := []string{"Allowed@Example.com"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")

	h := Middleware(fakeVerifier{email: "allowed@example.com"}, whitelist, nil)(echoEmailHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "allowed@example.com", rec.Body.String())

	h = Middleware(fakeVerifier{email: "stranger@example.com"}, whitelist, nil)(echoEmailHandler())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareEmptyWhitelistAdmitsVerified(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")

	h := Middleware(fakeVerifier{email: "anyone@example.com"}, nil, nil)(echoEmailHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer my-token")

	token, err := ExtractTokenFromRequest(req)
	assert.NoError(t, err)
	assert.Equal(t, "my-token", token)

	req.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err)
}
