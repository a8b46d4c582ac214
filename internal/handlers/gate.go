package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/tehshkola/apiserver/internal/auth"
)

// Cookie names of the two session domains. They are independent
// credentials: each is verified on its own and grants only its own scope.
const (
	AuthCookie       = "auth-token"
	CommissionCookie = "commission-token"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the verified principal of one request. It is built from
// freshly verified cookies on every request and never cached or shared;
// everything downstream of the gate trusts it instead of re-reading cookies.
type Identity struct {
	// Applicant holds the applicant/parent session claims, nil when the
	// request carries no valid applicant session.
	Applicant *auth.Claims

	// Commission is true when the request carries a valid commission session.
	Commission bool
}

// Gate is the single trust boundary of the server. It runs before every
// handler: derives identity from cookies, enforces the route policy table,
// and injects the verified identity into the request context.
type Gate struct {
	tokens *auth.Tokens
}

func NewGate(tokens *auth.Tokens) *Gate {
	return &Gate{tokens: tokens}
}

// Page prefixes that require an applicant session. Unauthorized page visits
// are redirected, not rejected: for a person clicking around this is a
// navigation concern, not an error.
var applicantPages = []string{"/profile", "/quiz", "/guide", "/game", "/shop"}

// API prefixes that require an applicant session. API clients get a
// machine-readable 401 instead of a redirect.
var applicantAPIs = []string{"/api/shop", "/api/profile", "/api/quiz"}

// Middleware authenticates and authorizes every inbound request.
// Verification failure and cookie absence are indistinguishable downstream:
// the gate fails closed in both cases.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := Identity{
			Applicant:  g.verifyApplicant(r),
			Commission: g.verifyCommission(r),
		}

		path := r.URL.Path

		if hasAnyPrefix(path, applicantPages) && identity.Applicant == nil {
			http.Redirect(w, r, "/applicant", http.StatusFound)
			return
		}

		if strings.HasPrefix(path, "/commission/dashboard") && !identity.Commission {
			http.Redirect(w, r, "/commission", http.StatusFound)
			return
		}

		if strings.HasPrefix(path, "/api/commission/") &&
			!strings.HasPrefix(path, "/api/commission/login") &&
			!identity.Commission {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		if hasAnyPrefix(path, applicantAPIs) && identity.Applicant == nil {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyApplicant returns the claims of a valid applicant/parent session,
// or nil. A commission token presented in the applicant cookie fails the
// role check and grants nothing.
func (g *Gate) verifyApplicant(r *http.Request) *auth.Claims {
	cookie, err := r.Cookie(AuthCookie)
	if err != nil {
		return nil
	}
	claims := g.tokens.Verify(cookie.Value)
	if claims == nil || !claims.Applicant() {
		return nil
	}
	return claims
}

func (g *Gate) verifyCommission(r *http.Request) bool {
	cookie, err := r.Cookie(CommissionCookie)
	if err != nil {
		return false
	}
	claims := g.tokens.Verify(cookie.Value)
	return claims != nil && claims.Commission()
}

// ApplicantFrom returns the applicant claims the gate attached to the
// request, if any.
func ApplicantFrom(ctx context.Context) (*auth.Claims, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok || identity.Applicant == nil {
		return nil, false
	}
	return identity.Applicant, true
}

// IsCommission reports whether the gate verified a commission session for
// this request.
func IsCommission(ctx context.Context) bool {
	identity, ok := ctx.Value(identityKey).(Identity)
	return ok && identity.Commission
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
