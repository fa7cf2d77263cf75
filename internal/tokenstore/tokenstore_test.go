package tokenstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/relay-id/authsvc/internal/apperr"
	"github.com/relay-id/authsvc/internal/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestFake_SaveAndFind_RoundTrip(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userID int64 = 1

	require.NoError(t, s.SaveRefresh(ctx, userID, "fp1", time.Hour))

	sess, err := s.FindByFingerprint(ctx, "fp1")
	require.NoError(t, err)
	require.Equal(t, userID, sess.UserID)

	valid, err := s.IsValid(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, valid)
}

func TestFake_FindByFingerprint_MissingIsTokenInvalid(t *testing.T) {
	s := tokenstore.NewFake()
	_, err := s.FindByFingerprint(context.Background(), "nope")
	require.Error(t, err)
	require.Equal(t, apperr.TokenInvalid, apperr.CodeOf(err))
}

func TestFake_SaveRefresh_DuplicateFingerprintIsInternal(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userID int64 = 1

	require.NoError(t, s.SaveRefresh(ctx, userID, "fp1", time.Hour))
	err := s.SaveRefresh(ctx, userID, "fp1", time.Hour)
	require.Error(t, err)
	require.Equal(t, apperr.Internal, apperr.CodeOf(err))
}

func TestFake_IsValid_ExpiredSessionIsFalse(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userID int64 = 1

	require.NoError(t, s.SaveRefresh(ctx, userID, "fp1", -time.Second))
	valid, err := s.IsValid(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestFake_CountActive_OnlyCountsUnexpiredForUser(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userA int64 = 1
	var userB int64 = 2

	require.NoError(t, s.SaveRefresh(ctx, userA, "fp1", time.Hour))
	require.NoError(t, s.SaveRefresh(ctx, userA, "fp2", time.Hour))
	require.NoError(t, s.SaveRefresh(ctx, userA, "fp3", -time.Second))
	require.NoError(t, s.SaveRefresh(ctx, userB, "fp4", time.Hour))

	n, err := s.CountActive(ctx, userA)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestFake_DeleteByFingerprint_IsIdempotent(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userID int64 = 1
	require.NoError(t, s.SaveRefresh(ctx, userID, "fp1", time.Hour))

	require.NoError(t, s.DeleteByFingerprint(ctx, "fp1"))
	require.NoError(t, s.DeleteByFingerprint(ctx, "fp1")) // missing row: still a no-op success

	valid, err := s.IsValid(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestFake_DeleteByUser_RemovesAllSessionsForUserOnly(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userA int64 = 1
	var userB int64 = 2
	require.NoError(t, s.SaveRefresh(ctx, userA, "fp1", time.Hour))
	require.NoError(t, s.SaveRefresh(ctx, userA, "fp2", time.Hour))
	require.NoError(t, s.SaveRefresh(ctx, userB, "fp3", time.Hour))

	n, err := s.DeleteByUser(ctx, userA)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	countA, _ := s.CountActive(ctx, userA)
	require.Equal(t, 0, countA)
	countB, _ := s.CountActive(ctx, userB)
	require.Equal(t, 1, countB)
}

func TestFake_SweepExpired_DeletesOnlyExpiredRows(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userID int64 = 1
	require.NoError(t, s.SaveRefresh(ctx, userID, "fp1", -time.Second))
	require.NoError(t, s.SaveRefresh(ctx, userID, "fp2", time.Hour))

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.FindByFingerprint(ctx, "fp2")
	require.NoError(t, err)
	_, err = s.FindByFingerprint(ctx, "fp1")
	require.Error(t, err)
}

func TestFake_ListByUser_ExcludesExpired(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userID int64 = 1
	require.NoError(t, s.SaveRefresh(ctx, userID, "fp1", time.Hour))
	require.NoError(t, s.SaveRefresh(ctx, userID, "fp2", -time.Second))

	sessions, err := s.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "fp1", sessions[0].Fingerprint)
}

func TestFake_DeleteByID_OnlyDeletesMatchingUser(t *testing.T) {
	s := tokenstore.NewFake()
	ctx := context.Background()
	var userA int64 = 1
	var userB int64 = 2
	require.NoError(t, s.SaveRefresh(ctx, userA, "fp1", time.Hour))

	sessions, err := s.ListByUser(ctx, userA)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	sessionID := sessions[0].ID

	// A different user cannot delete someone else's session.
	require.NoError(t, s.DeleteByID(ctx, userB, sessionID))
	valid, _ := s.IsValid(ctx, "fp1")
	require.True(t, valid)

	require.NoError(t, s.DeleteByID(ctx, userA, sessionID))
	valid, _ = s.IsValid(ctx, "fp1")
	require.False(t, valid)
}
