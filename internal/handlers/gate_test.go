package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tehshkola/apiserver/internal/auth"
	"github.com/tehshkola/apiserver/types"
)

const gateTestSecret = "0123456789abcdef0123456789abcdef"

func gateTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	return auth.New(gateTestSecret)
}

func applicantCookie(t *testing.T, tokens *auth.Tokens) *http.Cookie {
	t.Helper()
	value, err := tokens.Issue(auth.Claims{
		UserID: 7,
		Name:   "Иван",
		Role:   types.RoleApplicant,
	})
	require.NoError(t, err)
	return &http.Cookie{Name: AuthCookie, Value: value}
}

func commissionCookie(t *testing.T, tokens *auth.Tokens) *http.Cookie {
	t.Helper()
	value, err := tokens.Issue(auth.Claims{Role: types.RoleCommission})
	require.NoError(t, err)
	return &http.Cookie{Name: CommissionCookie, Value: value}
}

// gateRequest runs one request through the gate in front of a handler that
// records whether it was reached and what identity it saw.
func gateRequest(t *testing.T, path string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()

	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := Identity{Commission: IsCommission(r.Context())}
		if claims, ok := ApplicantFrom(r.Context()); ok {
			identity.Applicant = claims
		}
		seen = &identity
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	NewGate(gateTokens(t)).Middleware(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestGateRedirectsAnonymousPages(t *testing.T) {
	for _, path := range []string{"/profile", "/quiz", "/guide", "/game", "/shop"} {
		rec, reached := gateRequest(t, path)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/applicant", rec.Header().Get("Location"), path)
		assert.Nil(t, reached, path)
	}

	rec, reached := gateRequest(t, "/commission/dashboard")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/commission", rec.Header().Get("Location"))
	assert.Nil(t, reached)
}

func TestGateRejectsAnonymousAPIs(t *testing.T) {
	for _, path := range []string{
		"/api/shop",
		"/api/profile",
		"/api/quiz",
		"/api/commission/orders",
		"/api/commission/users",
	} {
		rec, reached := gateRequest(t, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Nil(t, reached, path)
	}
}

func TestGateOpenPaths(t *testing.T) {
	for _, path := range []string{"/", "/applicant", "/commission", "/api/register"} {
		rec, reached := gateRequest(t, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		require.NotNil(t, reached, path)
		assert.Nil(t, reached.Applicant, path)
		assert.False(t, reached.Commission, path)
	}
}

func TestGateCommissionLoginExempt(t *testing.T) {
	rec, reached := gateRequest(t, "/api/commission/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, reached)
}

func TestGateAdmitsApplicant(t *testing.T) {
	tokens := gateTokens(t)
	cookie := applicantCookie(t, tokens)

	rec, reached := gateRequest(t, "/api/shop", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, reached)
	require.NotNil(t, reached.Applicant)
	assert.Equal(t, 7, reached.Applicant.UserID)
	assert.False(t, reached.Commission)

	rec, _ = gateRequest(t, "/profile", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An applicant session grants nothing on the commission side.
	rec, _ = gateRequest(t, "/api/commission/orders", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = gateRequest(t, "/commission/dashboard", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestGateAdmitsCommission(t *testing.T) {
	tokens := gateTokens(t)
	cookie := commissionCookie(t, tokens)

	rec, reached := gateRequest(t, "/api/commission/orders", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, reached)
	assert.True(t, reached.Commission)
	assert.Nil(t, reached.Applicant)

	rec, _ = gateRequest(t, "/commission/dashboard", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A commission session is not an applicant session.
	rec, _ = gateRequest(t, "/api/shop", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = gateRequest(t, "/shop", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestGateRejectsCrossCookieTokens(t *testing.T) {
	tokens := gateTokens(t)

	// Commission token smuggled into the applicant cookie and vice versa.
	commissionValue, err := tokens.Issue(auth.Claims{Role: types.RoleCommission})
	require.NoError(t, err)
	rec, _ := gateRequest(t, "/api/shop", &http.Cookie{Name: AuthCookie, Value: commissionValue})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	applicantValue, err := tokens.Issue(auth.Claims{UserID: 7, Role: types.RoleApplicant})
	require.NoError(t, err)
	rec, _ = gateRequest(t, "/api/commission/orders", &http.Cookie{Name: CommissionCookie, Value: applicantValue})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateRejectsGarbageToken(t *testing.T) {
	rec, _ := gateRequest(t, "/api/shop", &http.Cookie{Name: AuthCookie, Value: "not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	foreign := auth.New("ffffffffffffffffffffffffffffffff")
	value, err := foreign.Issue(auth.Claims{UserID: 7, Role: types.RoleApplicant})
	require.NoError(t, err)
	rec, _ = gateRequest(t, "/api/shop", &http.Cookie{Name: AuthCookie, Value: value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
