package data

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/stake-plus/claimd/src/cloud"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("", t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpenExplicitSQLitePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	assert.FileExists(t, path)
}

func TestIdentityIsStable(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first, err := LoadOrCreateIdentity(ctx, db)
	require.NoError(t, err)
	assert.Len(t, first.MachineGUID, 36)
	assert.Len(t, first.NodeID, 36)

	second, err := LoadOrCreateIdentity(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, first.MachineGUID, second.MachineGUID)
	assert.Equal(t, first.NodeID, second.NodeID)
}

func TestClaimStore(t *testing.T) {
	ctx := context.Background()
	store := NewClaimStore(openTestDB(t))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, st.Claimed)

	require.NoError(t, store.SetBanned(ctx, "abuse"))
	st, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, st.Banned)
	assert.Equal(t, "abuse", st.Reason)

	saved, err := store.SaveClaim(ctx, "claim-1", "https://cloud.example", []string{"r1", "r2"})
	require.NoError(t, err)
	assert.True(t, saved.Claimed)

	st, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, st.Claimed)
	assert.False(t, st.Banned)
	assert.Equal(t, "claim-1", st.ClaimID)
	assert.Equal(t, "r1,r2", st.Rooms)
	assert.False(t, st.UpdatedAt.IsZero())
}

func TestAttempts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, kind := range []string{"forbidden", "invalid", "claimed"} {
		require.NoError(t, RecordAttempt(ctx, db, &ClaimAttempt{EventID: "ev-" + kind, Kind: kind}))
	}

	recent, err := RecentAttempts(ctx, db, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "claimed", recent[0].Kind)
	assert.Equal(t, "invalid", recent[1].Kind)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", Clip("abc", 5))
	assert.Equal(t, "ab", Clip("abc", 2))
	assert.Equal(t, "żó", Clip("żółw", 2))
}

func TestClaimStateProjection(t *testing.T) {
	updated := time.Unix(1_700_000_000, 0)
	st := ClaimState{Claimed: true, ClaimID: "c-1", URL: "https://cloud.example", Banned: true, Reason: "revoked", UpdatedAt: updated}

	cs := st.CloudState()
	assert.Equal(t, cloud.State{Claimed: true, ClaimID: "c-1", URL: "https://cloud.example", Banned: true, Reason: "revoked", Since: updated}, cs)
	assert.Equal(t, cloud.Banned, cloud.Compute(cs))
	assert.Equal(t, cloud.Available, cloud.Compute(ClaimState{}.CloudState()))
}

func TestSetBannedClipsReason(t *testing.T) {
	ctx := context.Background()
	store := NewClaimStore(openTestDB(t))
	require.NoError(t, store.SetBanned(ctx, strings.Repeat("x", MaxReasonLen*2)))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Reason, MaxReasonLen)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	s := NewSettings(db)
	require.NoError(t, s.Set(ctx, "proxy", "none"))
	require.NoError(t, s.Set(ctx, "proxy", "http://proxy:3128"))
	assert.Equal(t, "http://proxy:3128", s.Get("proxy"))

	reloaded := NewSettings(db)
	assert.Empty(t, reloaded.Get("proxy"))
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, "http://proxy:3128", reloaded.Get("proxy"))
}

func TestPublishEvent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rdb, err := ConnectRedis(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, PublishEvent(ctx, rdb, map[string]interface{}{"kind": "claimed", "status": "online"}))

	entries, err := rdb.XRange(ctx, StreamName(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "claimed", entries[0].Values["kind"])
}

func TestConnectRedisBadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "u@/db?parseTime=true", ensureParam("u@/db", "parseTime", "true"))
	assert.Equal(t, "u@/db?a=1&parseTime=true", ensureParam("u@/db?a=1", "parseTime", "true"))
	assert.Equal(t, "u@/db?parseTime=false", ensureParam("u@/db?parseTime=false", "parseTime", "true"))
}
