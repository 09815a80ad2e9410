package httptransport

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "concord/internal/jwt_token"
	id "concord/pkg/domain"
	"concord/pkg/platform/httputil"
	"concord/pkg/platform/middleware/request"
	"concord/pkg/requestcontext"
	"concord/pkg/testutil"
)

const adminToken = "ops-secret"

// whoami echoes the caller domain placed in the context by the auth middleware.
type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		d, _ := requestcontext.CallerDomain(r.Context())
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"domain": string(d)})
	})
}

func newTestRouter(withAuth bool, health map[string]HealthChecker) (http.Handler, *jwttoken.JWTService) {
	jwtService := jwttoken.NewJWTService("test-key", "concord", "concord-operators")
	cfg := RouterConfig{
		Logger:     testutil.DiscardLogger(),
		AdminToken: adminToken,
		Tokens:     jwtService,
		Health:     health,
	}
	if withAuth {
		cfg.Validator = jwttoken.NewMiddlewareValidator(jwtService)
	}
	return NewRouter(cfg, whoami{}), jwtService
}

func TestRouter_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, _ := newTestRouter(false, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "ok")
		assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
	})

	t.Run("failing dependency", func(t *testing.T) {
		router, _ := newTestRouter(false, map[string]HealthChecker{
			"redis": func(*http.Request) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(t, rr, "status", "degraded")
	})
}

func TestRouter_PrometheusEndpoint(t *testing.T) {
	router, _ := newTestRouter(false, nil)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
}

func TestRouter_OpenWithoutValidator(t *testing.T) {
	router, _ := newTestRouter(false, nil)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "domain", "")
}

func TestRouter_OperatorTokens(t *testing.T) {
	router, _ := newTestRouter(true, nil)

	t.Run("api requires a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("admin routes require the admin token", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{"domain": "energy", "subject": "alice"})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("issued token authenticates as its domain", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{"domain": "energy", "subject": "alice", "ttl_hours": 2})
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		issued := testutil.UnmarshalResponse[IssueTokenResponse](t, rr)
		require.NotEmpty(t, issued.Token)
		assert.Equal(t, id.Energy, issued.Domain)
		assert.Equal(t, 7200, issued.ExpiresIn)

		req = testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		rr = testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "domain", "energy")
	})

	t.Run("rejects unknown domains", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/tokens", map[string]any{"domain": "moon", "subject": "alice"})
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
