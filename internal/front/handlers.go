package front

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/authsvc"
	"github.com/relay-id/authsvc/internal/metrics"
	"github.com/relay-id/authsvc/internal/sms"
)

// AuthHandler binds the orchestrator's entry points to HTTP.
type AuthHandler struct {
	svc *authsvc.Service
}

func NewAuthHandler(svc *authsvc.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type userResponse struct {
	UUID        string `json:"uuid"`
	Mobile      string `json:"mobile"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Disabled    bool   `json:"disabled"`
}

type tokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func toUserResponse(u authsvc.PublicUser) userResponse {
	return userResponse{
		UUID:        u.UUID,
		Mobile:      u.Mobile,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Disabled:    u.Disabled,
	}
}

func toTokensResponse(t authsvc.Tokens) tokensResponse {
	return tokensResponse{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}

var sceneNames = map[string]sms.Scene{
	"register":       sms.SceneRegister,
	"login":          sms.SceneLogin,
	"reset_password": sms.SceneResetPassword,
	"delete_user":    sms.SceneDeleteUser,
}

type sendCodeRequest struct {
	Mobile string `json:"mobile"`
	Scene  string `json:"scene"`
}

func (h *AuthHandler) SendVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}
	scene, ok := sceneNames[req.Scene]
	if !ok {
		respondErr(w, apperr.Field("scene", "unknown scene"))
		return
	}

	retryAfter, err := h.svc.SendVerifyCode(r.Context(), scene, req.Mobile)
	if err != nil {
		respondErr(w, err)
		return
	}
	metrics.SMSCodesIssued.WithLabelValues(req.Scene).Inc()
	respondOK(w, map[string]int64{"retry_after_seconds": retryAfter})
}

type registerRequest struct {
	Mobile      string `json:"mobile"`
	Code        string `json:"code"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	res, err := h.svc.Register(r.Context(), req.Mobile, req.Code, req.Password, req.DisplayName)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, map[string]any{
		"user":   toUserResponse(res.User),
		"tokens": toTokensResponse(res.Tokens),
	})
}

type loginPasswordRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

func (h *AuthHandler) LoginByPassword(w http.ResponseWriter, r *http.Request) {
	var req loginPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	res, err := h.svc.LoginByPassword(r.Context(), req.Mobile, req.Password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("password", "fail").Inc()
		respondErr(w, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues("password", "ok").Inc()
	respondOK(w, map[string]any{
		"user":   toUserResponse(res.User),
		"tokens": toTokensResponse(res.Tokens),
	})
}

type loginCodeRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

func (h *AuthHandler) LoginByCode(w http.ResponseWriter, r *http.Request) {
	var req loginCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	res, err := h.svc.LoginByCode(r.Context(), req.Mobile, req.Code)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("code", "fail").Inc()
		respondErr(w, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues("code", "ok").Inc()
	respondOK(w, map[string]any{
		"user":   toUserResponse(res.User),
		"tokens": toTokensResponse(res.Tokens),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	tokens, err := h.svc.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, toTokensResponse(tokens))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

type resetPasswordRequest struct {
	Mobile      string `json:"mobile"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Mobile, req.Code, req.NewPassword); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

type validateTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// ValidateToken is the sidecar surface peer services call to validate a
// bearer they received, without sharing the signing secret.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	payload, err := h.svc.ValidateAccessToken(r.Context(), req.AccessToken)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, map[string]any{
		"uuid":       payload.UUID,
		"mobile":     payload.Mobile,
		"role":       payload.Role,
		"expires_at": payload.ExpiresAt,
	})
}

// Me returns the caller's own identity, straight from the verified token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := Principal(r.Context())
	if !ok {
		respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}
	respondOK(w, map[string]any{
		"uuid":   p.UUID.String(),
		"mobile": p.Mobile,
		"role":   p.Role,
	})
}

func (h *AuthHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := Principal(r.Context())
	if !ok {
		respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	sessions, err := h.svc.ListSessions(r.Context(), p.UUID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, sessions)
}

func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	p, ok := Principal(r.Context())
	if !ok {
		respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, apperr.Field("id", "session id must be a uuid"))
		return
	}
	if err := h.svc.RevokeSession(r.Context(), p.UUID, sessionID); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := Principal(r.Context())
	if !ok {
		respondErr(w, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}
	if err := h.svc.LogoutAll(r.Context(), p.UUID); err != nil {
		respondErr(w, err)
		return
	}
	respondOK(w, nil)
}

// ListUsers pages through accounts for administrators.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := 1
	pageSize := 20
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondErr(w, apperr.New(apperr.InvalidPage, "page must be a positive integer"))
			return
		}
		page = n
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondErr(w, apperr.New(apperr.InvalidPageSize, "page_size must be between 1 and 100"))
			return
		}
		pageSize = n
	}

	users, err := h.svc.ListUsers(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondOK(w, out)
}

type setDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

// SetUserDisabled flips an account's disabled flag. Disabling also revokes
// every refresh session the account owns.
func (h *AuthHandler) SetUserDisabled(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondErr(w, apperr.Field("id", "user id must be an integer"))
		return
	}
	var req setDisabledRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}
	if err := h.svc.SetUserDisabled(r.Context(), userID, req.Disabled); err != nil {
		respondErr(w, err)
		return
	}
	slog.Info("admin_set_user_disabled", "user_id", userID, "disabled", req.Disabled)
	respondOK(w, nil)
}
