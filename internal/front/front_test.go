package front_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/authsvc"
	"github.com/relay-id/authsvc/internal/cache"
	"github.com/relay-id/authsvc/internal/front"
	"github.com/relay-id/authsvc/internal/password"
	"github.com/relay-id/authsvc/internal/sms"
	"github.com/relay-id/authsvc/internal/token"
	"github.com/relay-id/authsvc/internal/tokenstore"
	"github.com/relay-id/authsvc/internal/user"
	"github.com/relay-id/authsvc/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct{ lastCode string }

func (s *stubSender) Send(ctx context.Context, mobile, code string, scene sms.Scene) error {
	s.lastCode = code
	return nil
}

type harness struct {
	router http.Handler
	codec  *token.Codec
	sender *stubSender
	users  *user.Fake
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := cache.NewFake()
	sender := &stubSender{}
	smsCtrl := sms.New(c, sender, sms.Config{
		CodeDigits:    6,
		CodeTTL:       5 * time.Minute,
		SendInterval:  time.Minute,
		RetryTTL:      10 * time.Minute,
		MaxRetryCount: 3,
		LockDuration:  30 * time.Minute,
	})

	codec, err := token.New([]byte("01234567890123456789012345678901"), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)

	users := user.NewFake()
	tokens := tokenstore.NewFake()
	limiter := authsvc.NewLoginLimiter(c, 3, 15*time.Minute, 15*time.Minute)

	svc := authsvc.New(authsvc.Config{
		RefreshTTL: time.Hour,
		PasswordPolicy: validate.PasswordPolicy{
			MinLength:    8,
			MaxLength:    32,
			RequireDigit: true,
			RequireLower: true,
		},
		CodeLength: 6,
	}, users, tokens, codec, smsCtrl, password.NewBcryptHasher(4), limiter)

	return &harness{
		router: front.NewRouter(svc, codec, front.Options{}),
		codec:  codec,
		sender: sender,
		users:  users,
	}
}

func (h *harness) do(t *testing.T, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func (h *harness) register(t *testing.T, mobile string) map[string]any {
	t.Helper()
	_, env := h.do(t, http.MethodPost, "/api/v1/auth/code",
		map[string]string{"mobile": mobile, "scene": "register"}, nil)
	require.EqualValues(t, 0, env["code"], "send code: %v", env)

	_, env = h.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"mobile":       mobile,
		"code":         h.sender.lastCode,
		"password":     "Password1",
		"display_name": "Alice",
	}, nil)
	require.EqualValues(t, 0, env["code"], "register: %v", env)
	return env["data"].(map[string]any)
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + tok}}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, env["code"])
}

func TestRegisterLoginRoundtrip(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000001")
	regTokens := data["tokens"].(map[string]any)

	rec, env := h.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"mobile": "13900000001", "password": "Password1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, env["code"])

	loginTokens := env["data"].(map[string]any)["tokens"].(map[string]any)
	assert.NotEqual(t, regTokens["access_token"], loginTokens["access_token"],
		"login must mint a fresh access token")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.register(t, "13900000002")

	rec, env := h.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"mobile": "13900000002", "password": "Wrong111"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, apperr.WrongPassword, env["code"])
}

func TestBearerHeaderBoundaries(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		header http.Header
	}{
		{"missing header", nil},
		{"basic scheme", http.Header{"Authorization": []string{"Basic dXNlcjpwdw=="}}},
		{"no space", http.Header{"Authorization": []string{"Bearertoken"}}},
		{"empty token", http.Header{"Authorization": []string{"Bearer "}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := h.do(t, http.MethodGet, "/api/v1/me", nil, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.EqualValues(t, apperr.Unauthenticated, env["code"])
		})
	}
}

func TestMeReturnsPrincipal(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000003")
	access := data["tokens"].(map[string]any)["access_token"].(string)

	rec, env := h.do(t, http.MethodGet, "/api/v1/me", nil, bearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	me := env["data"].(map[string]any)
	assert.Equal(t, "13900000003", me["mobile"])
}

func TestExpiredTokenSurfacesTokenExpired(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000004")
	_ = data

	expiredCodec, err := token.New([]byte("01234567890123456789012345678901"), "authsvc", -time.Minute, time.Hour)
	require.NoError(t, err)
	u, err := h.users.FindByMobile(context.Background(), "13900000004")
	require.NoError(t, err)
	pair, err := expiredCodec.Issue(token.User{ID: u.ID, UUID: u.UUID, Mobile: u.Mobile, Role: string(u.Role)})
	require.NoError(t, err)

	rec, env := h.do(t, http.MethodGet, "/api/v1/me", nil, bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, apperr.TokenExpired, env["code"])
}

func TestRefreshRotationViaHTTP(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000005")
	r1 := data["tokens"].(map[string]any)["refresh_token"].(string)

	rec, env := h.do(t, http.MethodPost, "/api/v1/auth/refresh",
		map[string]string{"refresh_token": r1}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, env["code"])

	// The rotated-out token is no longer accepted.
	rec, env = h.do(t, http.MethodPost, "/api/v1/auth/refresh",
		map[string]string{"refresh_token": r1}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, apperr.TokenRevoked, env["code"])
}

func TestAdminGuard(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000006")
	access := data["tokens"].(map[string]any)["access_token"].(string)

	// A plain user is rejected.
	rec, env := h.do(t, http.MethodGet, "/api/v1/admin/users", nil, bearer(access))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.EqualValues(t, apperr.AdminRequired, env["code"])

	// An admin passes.
	u, err := h.users.FindByMobile(context.Background(), "13900000006")
	require.NoError(t, err)
	adminPair, err := h.codec.Issue(token.User{ID: u.ID, UUID: u.UUID, Mobile: u.Mobile, Role: string(user.RoleAdmin)})
	require.NoError(t, err)

	rec, env = h.do(t, http.MethodGet, "/api/v1/admin/users", nil, bearer(adminPair.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, env["code"])
}

func TestListUsersPagingValidation(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000007")
	_ = data
	u, err := h.users.FindByMobile(context.Background(), "13900000007")
	require.NoError(t, err)
	adminPair, err := h.codec.Issue(token.User{ID: u.ID, UUID: u.UUID, Mobile: u.Mobile, Role: string(user.RoleAdmin)})
	require.NoError(t, err)

	rec, env := h.do(t, http.MethodGet, "/api/v1/admin/users?page=0", nil, bearer(adminPair.AccessToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, apperr.InvalidPage, env["code"])

	rec, env = h.do(t, http.MethodGet, "/api/v1/admin/users?page_size=1000", nil, bearer(adminPair.AccessToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, apperr.InvalidPageSize, env["code"])
}

func TestValidateTokenSidecar(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000008")
	access := data["tokens"].(map[string]any)["access_token"].(string)

	rec, env := h.do(t, http.MethodPost, "/api/v1/auth/validate",
		map[string]string{"access_token": access}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := env["data"].(map[string]any)
	assert.Equal(t, "13900000008", payload["mobile"])

	rec, env = h.do(t, http.MethodPost, "/api/v1/auth/validate",
		map[string]string{"access_token": "not.a.token"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, apperr.TokenInvalid, env["code"])
}

func TestUnknownSceneRejected(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodPost, "/api/v1/auth/code",
		map[string]string{"mobile": "13900000009", "scene": "mystery"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, apperr.InvalidArgument, env["code"])
}

func TestSessionsListAndRevoke(t *testing.T) {
	h := newHarness(t)
	data := h.register(t, "13900000010")
	access := data["tokens"].(map[string]any)["access_token"].(string)

	rec, env := h.do(t, http.MethodGet, "/api/v1/auth/sessions", nil, bearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := env["data"].([]any)
	require.Len(t, sessions, 1)

	id := sessions[0].(map[string]any)["ID"].(string)
	rec, env = h.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/auth/sessions/%s", id), nil, bearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, env["code"])

	rec, env = h.do(t, http.MethodGet, "/api/v1/auth/sessions", nil, bearer(access))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env["data"])
}
