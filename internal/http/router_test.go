package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"detailhub/internal/config"
	"detailhub/internal/domain/models"
	h "detailhub/internal/http/handlers"
	"detailhub/internal/http/middleware"
	"detailhub/internal/payments"
	"detailhub/internal/repositories"
	"detailhub/internal/services"
)

const testJWTSecret = "test-secret"

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cronHash, err := bcrypt.GenerateFromPassword([]byte("cron-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env := config.Env{
		JWTSecret:          testJWTSecret,
		AdminSecretHash:    string(adminHash),
		CronSecretHash:     string(cronHash),
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}

	ledger := repositories.NewMemoryLedger()
	ledger.SeedService(models.Service{ID: "svc-1", Name: "Full detail", Active: true})
	ledger.SeedProvider(models.Provider{ID: "prov-1", ProcessorAccountID: "acct_1", PayoutsEnabled: true})
	core := services.NewCore(ledger, payments.Unconfigured{}, nil, services.DefaultPolicy(), nil)
	return &testServer{t: t, engine: NewRouter(env, &h.API{Core: core})}
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func (s *testServer) do(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (s *testServer) createBooking() string {
	s.t.Helper()
	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	w, out := s.do(http.MethodPost, "/api/bookings", map[string]any{
		"provider_id":     "prov-1",
		"service_id":      "svc-1",
		"base_cents":      12000,
		"add_ons_cents":   1500,
		"tax_cents":       960,
		"scheduled_start": start,
		"scheduled_end":   start.Add(2 * time.Hour),
		"service_address": "12 Harbor Rd",
	}, bearer(token(s.t, "cust-1", "customer")))
	if w.Code != http.StatusCreated {
		s.t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	booking, _ := out["booking"].(map[string]any)
	id, _ := booking["id"].(string)
	if id == "" {
		s.t.Fatalf("no booking id in %s", w.Body.String())
	}
	if out["payment_error"] == nil {
		s.t.Fatalf("expected payment_error with an unconfigured processor")
	}
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(http.MethodGet, "/api/health", nil, nil)
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("health = %d %v", w.Code, out)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestBookings_RequireToken(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(http.MethodPost, "/api/bookings", map[string]any{}, nil)
	if w.Code != http.StatusUnauthorized || out["code"] != "unauthorized" {
		t.Fatalf("status = %d %v", w.Code, out)
	}
	w, _ = s.do(http.MethodGet, "/api/bookings/x", nil, bearer("not-a-token"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", w.Code)
	}
}

func TestBookings_CreateAndRead(t *testing.T) {
	s := newTestServer(t)
	id := s.createBooking()

	w, out := s.do(http.MethodGet, "/api/bookings/"+id, nil, bearer(token(t, "prov-1", "provider")))
	if w.Code != http.StatusOK || out["status"] != "PENDING_PAYMENT" {
		t.Fatalf("get = %d %v", w.Code, out)
	}
	w, out = s.do(http.MethodGet, "/api/bookings/"+id, nil, bearer(token(t, "cust-9", "customer")))
	if w.Code != http.StatusForbidden || out["code"] != "forbidden" {
		t.Fatalf("stranger get = %d %v", w.Code, out)
	}
	w, out = s.do(http.MethodGet, "/api/bookings/"+id+"/events", nil, bearer(token(t, "cust-1", "customer")))
	if w.Code != http.StatusOK {
		t.Fatalf("events = %d %v", w.Code, out)
	}
	if evs, _ := out["events"].([]any); len(evs) != 1 {
		t.Fatalf("events = %v", out["events"])
	}
}

func TestBookings_IllegalTransitionIs409(t *testing.T) {
	s := newTestServer(t)
	id := s.createBooking()
	w, out := s.do(http.MethodPost, "/api/bookings/"+id+"/complete", nil, bearer(token(t, "prov-1", "provider")))
	if w.Code != http.StatusConflict || out["code"] != "invalid_transition" {
		t.Fatalf("complete = %d %v", w.Code, out)
	}
	details, _ := out["details"].(map[string]any)
	if details["current_status"] != "PENDING_PAYMENT" || details["transition"] != "COMPLETE" {
		t.Fatalf("details = %v", details)
	}
	if out["request_id"] == "" {
		t.Fatalf("request_id missing")
	}
}

func TestBookings_NotFound(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(http.MethodGet, "/api/bookings/missing", nil, bearer(token(t, "cust-1", "customer")))
	if w.Code != http.StatusNotFound || out["code"] != "not_found" {
		t.Fatalf("status = %d %v", w.Code, out)
	}
}

func TestAdmin_RequiresSecret(t *testing.T) {
	s := newTestServer(t)
	id := s.createBooking()
	path := "/api/admin/bookings/" + id + "/refund"

	w, _ := s.do(http.MethodPost, path, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no secret = %d", w.Code)
	}
	w, _ = s.do(http.MethodPost, path, nil, map[string]string{middleware.AdminSecretHeader: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret = %d", w.Code)
	}
	w, _ = s.do(http.MethodPost, path, nil, bearer(token(t, "cust-1", "customer")))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("customer token = %d", w.Code)
	}
	// PENDING_PAYMENT cannot be refunded.
	w, out := s.do(http.MethodPost, path, nil, map[string]string{middleware.AdminSecretHeader: "admin-pass"})
	if w.Code != http.StatusConflict || out["code"] != "invalid_transition" {
		t.Fatalf("admin refund = %d %v", w.Code, out)
	}
	w, _ = s.do(http.MethodPost, path, nil, bearer(token(t, "admin-1", "admin")))
	if w.Code != http.StatusConflict {
		t.Fatalf("admin token refund = %d", w.Code)
	}
}

func TestReleasePayout_PreconditionIs409(t *testing.T) {
	s := newTestServer(t)
	id := s.createBooking()
	w, out := s.do(http.MethodPost, "/api/admin/bookings/"+id+"/release-payout", nil,
		map[string]string{middleware.AdminSecretHeader: "admin-pass"})
	if w.Code != http.StatusConflict || out["code"] != "precondition_failed" {
		t.Fatalf("release = %d %v", w.Code, out)
	}
}

func TestAutoRelease_CronSecret(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodPost, "/api/internal/auto-release", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no secret = %d", w.Code)
	}
	w, out := s.do(http.MethodPost, "/api/internal/auto-release", nil, map[string]string{middleware.CronSecretHeader: "cron-pass"})
	if w.Code != http.StatusOK || out["processed"] != float64(0) {
		t.Fatalf("sweep = %d %v", w.Code, out)
	}
}

func TestWebhook_UnverifiedIsRejected(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodPost, "/api/webhooks/stripe", map[string]any{"id": "evt_1"}, map[string]string{"Stripe-Signature": "t=1,v1=abc"})
	if w.Code == http.StatusOK {
		t.Fatalf("unverified webhook accepted")
	}
}

func TestProviderEarnings_OwnOnly(t *testing.T) {
	s := newTestServer(t)
	w, out := s.do(http.MethodGet, "/api/providers/prov-1/earnings", nil, bearer(token(t, "prov-1", "provider")))
	if w.Code != http.StatusOK || out["provider_id"] != "prov-1" {
		t.Fatalf("earnings = %d %v", w.Code, out)
	}
	w, _ = s.do(http.MethodGet, "/api/providers/prov-1/earnings", nil, bearer(token(t, "prov-2", "provider")))
	if w.Code != http.StatusForbidden {
		t.Fatalf("other provider = %d", w.Code)
	}
	w, _ = s.do(http.MethodGet, "/api/providers/prov-1/earnings?from=yesterday", nil, bearer(token(t, "prov-1", "provider")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad from = %d", w.Code)
	}
}
