package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/token"
	"github.com/stretchr/testify/require"
)

func testSecret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func testUser() token.User {
	return token.User{ID: 42, UUID: uuid.New(), Mobile: "+15551234567", Role: "member"}
}

func TestCodec_New_RejectsShortSecret(t *testing.T) {
	_, err := token.New([]byte("too-short"), "authsvc", time.Minute, time.Hour)
	require.Error(t, err)
}

func TestCodec_IssueAndVerifyAccess_RoundTrip(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)
	user := testUser()

	pair, err := c.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	payload, err := c.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, payload.UserID)
	require.Equal(t, user.UUID, payload.UUID)
	require.Equal(t, user.Mobile, payload.Mobile)
	require.Equal(t, user.Role, payload.Role)
}

func TestCodec_ParseRefresh_ReturnsUserID(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)
	user := testUser()

	pair, err := c.Issue(user)
	require.NoError(t, err)

	uid, err := c.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
}

func TestCodec_VerifyAccess_EmptyTokenIsTokenMissing(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = c.VerifyAccess("")
	require.Error(t, err)
	require.Equal(t, apperr.TokenMissing, apperr.CodeOf(err))
}

func TestCodec_VerifyAccess_MalformedTokenIsTokenInvalid(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = c.VerifyAccess("not-a-jwt")
	require.Error(t, err)
	require.Equal(t, apperr.TokenInvalid, apperr.CodeOf(err))
}

func TestCodec_VerifyAccess_WrongSignatureIsTokenInvalid(t *testing.T) {
	c1, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)
	c2, err := token.New([]byte("ffffffffffffffffffffffffffffffff"), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := c1.Issue(testUser())
	require.NoError(t, err)

	_, err = c2.VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	require.Equal(t, apperr.TokenInvalid, apperr.CodeOf(err))
}

func TestCodec_VerifyAccess_ExpiredIsTokenExpired(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", -time.Second, time.Hour)
	require.NoError(t, err)

	pair, err := c.Issue(testUser())
	require.NoError(t, err)

	_, err = c.VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	require.Equal(t, apperr.TokenExpired, apperr.CodeOf(err))
}

func TestCodec_VerifyAccess_RefreshTokenIsRejected(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := c.Issue(testUser())
	require.NoError(t, err)

	_, err = c.VerifyAccess(pair.RefreshToken)
	require.Error(t, err)
	require.Equal(t, apperr.TokenInvalid, apperr.CodeOf(err))
}

func TestCodec_ParseRefresh_AccessTokenIsRejected(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)

	pair, err := c.Issue(testUser())
	require.NoError(t, err)

	_, err = c.ParseRefresh(pair.AccessToken)
	require.Error(t, err)
	require.Equal(t, apperr.TokenInvalid, apperr.CodeOf(err))
}

func TestCodec_Issue_ProducesDistinctEnvelopesForSameUser(t *testing.T) {
	c, err := token.New(testSecret(), "authsvc", time.Minute, time.Hour)
	require.NoError(t, err)
	user := testUser()

	p1, err := c.Issue(user)
	require.NoError(t, err)
	p2, err := c.Issue(user)
	require.NoError(t, err)

	require.NotEqual(t, p1.AccessToken, p2.AccessToken)
	require.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
}

func TestFingerprint_IsDeterministicAndHex(t *testing.T) {
	fp1 := token.Fingerprint("some-refresh-token")
	fp2 := token.Fingerprint("some-refresh-token")
	require.Equal(t, fp1, fp2)
	require.Len(t, fp1, 64)
	require.Equal(t, strings.ToLower(fp1), fp1)

	fp3 := token.Fingerprint("different-token")
	require.NotEqual(t, fp1, fp3)
}
