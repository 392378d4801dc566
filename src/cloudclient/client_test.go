package cloudclient

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stake-plus/claimd/src/claim"
)

type recorded struct {
	claimID string
	url     string
	rooms   []string
}

type fakeRecorder struct {
	calls []recorded
	err   error
}

func (f *fakeRecorder) RecordClaim(_ context.Context, claimID, baseURL string, rooms []string) error {
	f.calls = append(f.calls, recorded{claimID, baseURL, rooms})
	return f.err
}

func newTestClient(t *testing.T, rec Recorder) *Client {
	t.Helper()
	c := New(Options{
		StateDir: t.TempDir(),
		Identity: claim.Identity{NodeID: "node-1", MachineGUID: "mg-1", Hostname: "db01"},
		Recorder: rec,
		Timeout:  5 * time.Second,
		Logger:   zaptest.NewLogger(t),
	})
	// keep tests fast
	c.keys.bits = 1024
	return c
}

func TestClaimSuccess(t *testing.T) {
	var got claimBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/spaces/nodes/node-1", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"claimed_id":"claim-42"}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	c := newTestClient(t, rec)

	err := c.Claim(context.Background(), claim.Request{BaseURL: srv.URL + "/", Token: "abc", Rooms: []string{"r1"}, Proxy: "none"})
	require.NoError(t, err)

	assert.Equal(t, "node-1", got.NodeID)
	assert.Equal(t, "db01", got.Hostname)
	assert.Equal(t, []string{"r1"}, got.Rooms)

	block, _ := pem.Decode([]byte(got.PublicKey))
	require.NotNil(t, block)
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(got.Assertion, &claims, func(*jwt.Token) (interface{}, error) { return pub, nil })
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, "node-1", claims.Issuer)
	assert.Len(t, tok.Header["kid"], 32)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "claim-42", rec.calls[0].claimID)
}

func TestClaimRemoteRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorMsgKey":"ErrInvalidToken","errorMessage":"<b>token expired</b>"}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	err := newTestClient(t, rec).Claim(context.Background(), claim.Request{BaseURL: srv.URL, Token: "abc", Proxy: "none"})

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusForbidden, rerr.Status)
	assert.Equal(t, "ErrInvalidToken", rerr.Key)
	assert.Equal(t, "token expired", err.Error())
	assert.Empty(t, rec.calls)
}

func TestClaimRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := newTestClient(t, nil).Claim(context.Background(), claim.Request{BaseURL: srv.URL, Token: "abc", Proxy: "none"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry later")
	assert.Contains(t, err.Error(), "429")
}

func TestClaimUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	err := newTestClient(t, nil).Claim(context.Background(), claim.Request{BaseURL: base, Token: "abc", Proxy: "none"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach")
}

func TestClaimMakesSingleRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestClient(t, nil).Claim(context.Background(), claim.Request{BaseURL: srv.URL, Token: "abc", Proxy: "none"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClaimInvalidURL(t *testing.T) {
	err := newTestClient(t, nil).Claim(context.Background(), claim.Request{BaseURL: "ftp://cloud.example", Token: "abc"})
	assert.Error(t, err)
}

func TestKeyStorePersists(t *testing.T) {
	dir := t.TempDir()
	ks := NewKeyStore(dir)
	ks.bits = 1024

	key, err := ks.LoadOrCreate()
	require.NoError(t, err)

	info, err := os.Stat(ks.Path())
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	again := NewKeyStore(dir)
	loaded, err := again.LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, key.Equal(loaded))

	_, kid1, err := PublicKey(key)
	require.NoError(t, err)
	_, kid2, err := PublicKey(loaded)
	require.NoError(t, err)
	assert.Equal(t, kid1, kid2)
}
