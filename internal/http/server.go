package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Harisdckap/Croom/internal/account"
	"github.com/Harisdckap/Croom/internal/model"
)

type Server struct {
	svc *account.Service
}

func NewServer(svc *account.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/verify-otp", s.handleVerifyOTP)
	r.Post("/auth/resend-otp", s.handleResendOTP)
	r.Post("/auth/federated", s.handleFederatedLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.With(s.authMiddleware).Post("/auth/password", s.handleChangePassword)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)
	r.With(s.authMiddleware).Patch("/auth/profile", s.handleUpdateProfile)

	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Mobile   string `json:"mobile"`
}

type registerResponse struct {
	AccountID   string `json:"accountId"`
	AccessToken string `json:"accessToken"`
	Delivery    string `json:"delivery"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.svc.Register(r.Context(), account.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Gender:   req.Gender,
		Mobile:   req.Mobile,
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateIdentity) {
			writeError(w, http.StatusConflict, "already_registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	delivery := "sent"
	if result.DeliveryFailed {
		delivery = "failed"
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		AccountID:   result.AccountID,
		AccessToken: result.Token,
		Delivery:    delivery,
	})
}

type verifyOTPRequest struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.AccountID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if err := s.svc.VerifyOTP(r.Context(), req.AccountID, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

type resendOTPRequest struct {
	AccountID string `json:"accountId"`
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.svc.ReissueOTP(r.Context(), req.AccountID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type federatedRequest struct {
	Provider       string  `json:"provider"`
	ProviderUserID string  `json:"providerUserId"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Photo          *string `json:"photo,omitempty"`
}

type federatedResponse struct {
	AccountID   string `json:"accountId"`
	AccessToken string `json:"accessToken,omitempty"`
	NewAccount  bool   `json:"newAccount"`
}

func (s *Server) handleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.svc.FederatedLogin(r.Context(), model.ProviderAssertion{
		Provider:       req.Provider,
		ProviderUserID: req.ProviderUserID,
		Email:          req.Email,
		Name:           req.Name,
		Photo:          req.Photo,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.NewAccount {
		status = http.StatusCreated
	}
	writeJSON(w, status, federatedResponse{
		AccountID:   result.AccountID,
		AccessToken: result.Token,
		NewAccount:  result.NewAccount,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.svc.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	if err := s.svc.Logout(r.Context(), token); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type accountSummary struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Gender      string  `json:"gender,omitempty"`
	Mobile      string  `json:"mobile,omitempty"`
	Photo       *string `json:"photo,omitempty"`
	AccountType string  `json:"accountType"`
	Verified    bool    `json:"verified"`
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	acc, err := s.svc.GetAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAccountSummary(acc))
}

type updateProfileRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
	Mobile string `json:"mobile"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	acc, err := s.svc.UpdateProfile(r.Context(), accountID, account.UpdateProfileInput{
		Name:   req.Name,
		Email:  req.Email,
		Gender: req.Gender,
		Mobile: req.Mobile,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapAccountSummary(acc))
}

func mapAccountSummary(acc model.Account) accountSummary {
	return accountSummary{
		ID:          acc.ID,
		Email:       acc.Email,
		Name:        acc.Name,
		Gender:      acc.Gender,
		Mobile:      acc.Mobile,
		Photo:       acc.Photo,
		AccountType: acc.AccountType,
		Verified:    acc.Verified,
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		accountID, err := s.svc.ValidateToken(r.Context(), token)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey{}, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type accountIDKey struct{}

func accountIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(accountIDKey{}).(string)
	return value
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation_failed",
			"fields": map[string]string{vErr.Field: vErr.Reason},
		})
		return
	}

	switch {
	case errors.Is(err, model.ErrDuplicateIdentity):
		writeError(w, http.StatusConflict, "duplicate_identity")
	case errors.Is(err, model.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account_not_found")
	case errors.Is(err, model.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, model.ErrNoChallenge):
		writeError(w, http.StatusBadRequest, "no_challenge")
	case errors.Is(err, model.ErrChallengeExpired):
		writeError(w, http.StatusBadRequest, "otp_expired")
	case errors.Is(err, model.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, "otp_mismatch")
	case errors.Is(err, model.ErrChallengeConsumed):
		writeError(w, http.StatusBadRequest, "otp_consumed")
	case errors.Is(err, model.ErrMissingToken):
		writeError(w, http.StatusUnauthorized, "missing_token")
	case errors.Is(err, model.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired")
	case errors.Is(err, model.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "token_revoked")
	case errors.Is(err, model.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}
