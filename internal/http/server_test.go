package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Harisdckap/Croom/internal/account"
	"github.com/Harisdckap/Croom/internal/federation"
	"github.com/Harisdckap/Croom/internal/otp"
	"github.com/Harisdckap/Croom/internal/repository"
	"github.com/Harisdckap/Croom/internal/token"
)

type recordingMailer struct {
	lastCode string
}

func (m *recordingMailer) SendOTP(_ context.Context, _, code, _ string) error {
	m.lastCode = code
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingMailer) {
	t.Helper()
	store := repository.NewMemStore()
	tokens := token.NewService("test-secret", "test-issuer", time.Hour, token.NewMemoryRevocationSet())
	mailer := &recordingMailer{}
	svc := account.NewService(
		store,
		tokens,
		otp.NewService(store, 10*time.Minute),
		federation.NewLinker(store),
		mailer,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	app := httptest.NewServer(NewServer(svc).Router())
	t.Cleanup(app.Close)
	return app, mailer
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func registerBody() map[string]string {
	return map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
		"name":     "Alice",
		"gender":   "female",
		"mobile":   "9876543210",
	}
}

func TestRegisterAndDuplicate(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		AccountID   string `json:"accountId"`
		AccessToken string `json:"accessToken"`
		Delivery    string `json:"delivery"`
	}
	decodeBody(t, resp, &created)
	if created.AccountID == "" || created.AccessToken == "" {
		t.Fatalf("expected account id and token, got %+v", created)
	}
	if created.Delivery != "sent" {
		t.Fatalf("expected delivery sent, got %s", created.Delivery)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "already_registered" {
		t.Fatalf("expected already_registered, got %s", body["error"])
	}
}

func TestRegisterValidationFailure(t *testing.T) {
	app, _ := newTestServer(t)

	body := registerBody()
	body["password"] = "short"
	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var payload struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, resp, &payload)
	if payload.Error != "validation_failed" {
		t.Fatalf("expected validation_failed, got %s", payload.Error)
	}
	if _, ok := payload.Fields["password"]; !ok {
		t.Fatalf("expected password field detail, got %v", payload.Fields)
	}
}

func TestVerifyOTPFlow(t *testing.T) {
	app, mailer := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		AccountID string `json:"accountId"`
	}
	decodeBody(t, resp, &created)

	wrong := "000000"
	if wrong == mailer.lastCode {
		wrong = "000001"
	}
	resp = doReq(t, http.MethodPost, app.URL+"/auth/verify-otp", "", map[string]string{
		"accountId": created.AccountID,
		"code":      wrong,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on wrong code, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/verify-otp", "", map[string]string{
		"accountId": created.AccountID,
		"code":      mailer.lastCode,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Second verification with the same code reports consumption.
	resp = doReq(t, http.MethodPost, app.URL+"/auth/verify-otp", "", map[string]string{
		"accountId": created.AccountID,
		"code":      mailer.lastCode,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on consumed code, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "otp_consumed" {
		t.Fatalf("expected otp_consumed, got %s", body["error"])
	}
}

func TestResendOTP(t *testing.T) {
	app, mailer := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	var created struct {
		AccountID string `json:"accountId"`
	}
	decodeBody(t, resp, &created)
	firstCode := mailer.lastCode

	resp = doReq(t, http.MethodPost, app.URL+"/auth/resend-otp", "", map[string]string{
		"accountId": created.AccountID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Only the newest code verifies.
	if mailer.lastCode != firstCode {
		resp = doReq(t, http.MethodPost, app.URL+"/auth/verify-otp", "", map[string]string{
			"accountId": created.AccountID,
			"code":      firstCode,
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for superseded code, got %d", resp.StatusCode)
		}
	}
	resp = doReq(t, http.MethodPost, app.URL+"/auth/verify-otp", "", map[string]string{
		"accountId": created.AccountID,
		"code":      mailer.lastCode,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	var created struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &created)

	resp = doReq(t, http.MethodGet, app.URL+"/auth/me", created.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/logout", created.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/auth/me", created.AccessToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "token_revoked" {
		t.Fatalf("expected token_revoked, got %s", body["error"])
	}
}

func TestLogoutWithoutToken(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/logout", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "missing_token" {
		t.Fatalf("expected missing_token, got %s", body["error"])
	}
}

func TestFederatedLogin(t *testing.T) {
	app, _ := newTestServer(t)

	assertion := map[string]string{
		"provider":       "google",
		"providerUserId": "uid-1",
		"email":          "bob@example.com",
		"name":           "Bob",
	}

	resp := doReq(t, http.MethodPost, app.URL+"/auth/federated", "", assertion)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on first login, got %d", resp.StatusCode)
	}
	var first struct {
		AccountID   string `json:"accountId"`
		AccessToken string `json:"accessToken"`
		NewAccount  bool   `json:"newAccount"`
	}
	decodeBody(t, resp, &first)
	if !first.NewAccount || first.AccessToken == "" {
		t.Fatalf("expected new account with token, got %+v", first)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/federated", "", assertion)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on repeat login, got %d", resp.StatusCode)
	}
	var second struct {
		AccountID   string `json:"accountId"`
		AccessToken string `json:"accessToken"`
		NewAccount  bool   `json:"newAccount"`
	}
	decodeBody(t, resp, &second)
	if second.NewAccount || second.AccountID != first.AccountID {
		t.Fatalf("expected same existing account, got %+v", second)
	}
	if second.AccessToken != "" {
		t.Fatalf("expected no token on repeat login")
	}
}

func TestChangePassword(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	var created struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &created)

	resp = doReq(t, http.MethodPost, app.URL+"/auth/password", created.AccessToken, map[string]string{
		"currentPassword": "wrong-password",
		"newPassword":     "newpassword1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/auth/password", created.AccessToken, map[string]string{
		"currentPassword": "password123",
		"newPassword":     "newpassword1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestUpdateProfile(t *testing.T) {
	app, _ := newTestServer(t)

	resp := doReq(t, http.MethodPost, app.URL+"/auth/register", "", registerBody())
	var created struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &created)

	resp = doReq(t, http.MethodPatch, app.URL+"/auth/profile", created.AccessToken, map[string]string{
		"name":   "Alice Cooper",
		"email":  "alice@example.com",
		"gender": "female",
		"mobile": "9876543210",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var summary struct {
		Name string `json:"name"`
	}
	decodeBody(t, resp, &summary)
	if summary.Name != "Alice Cooper" {
		t.Fatalf("expected updated name, got %s", summary.Name)
	}
}
