// Package cloudclient performs the claim call against the cloud space API.
package cloudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/claimd/src/claim"
	"github.com/stake-plus/claimd/src/logging"
	"github.com/stake-plus/claimd/src/webclient"
)

const (
	claimPath       = "/api/v1/spaces/nodes/"
	maxResponseSize = 64 << 10
	defaultTimeout  = 30 * time.Second
)

// Recorder persists a successful claim.
type Recorder interface {
	RecordClaim(ctx context.Context, claimID, baseURL string, rooms []string) error
}

// RemoteError is a claim the cloud answered but refused.
type RemoteError struct {
	Status int
	Key    string
	Reason string
}

func (e *RemoteError) Error() string { return e.Reason }

type Options struct {
	StateDir string
	Identity claim.Identity
	Recorder Recorder
	Timeout  time.Duration
	Logger   *zap.Logger
}

type Client struct {
	keys      *KeyStore
	identity  claim.Identity
	recorder  Recorder
	timeout   time.Duration
	sanitizer *bluemonday.Policy
	log       *zap.Logger
	now       func() time.Time
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		keys:      NewKeyStore(opts.StateDir),
		identity:  opts.Identity,
		recorder:  opts.Recorder,
		timeout:   opts.Timeout,
		sanitizer: bluemonday.StrictPolicy(),
		log:       opts.Logger.Named("cloudclient"),
		now:       time.Now,
	}
}

type claimBody struct {
	NodeID      string   `json:"node_id"`
	MachineGUID string   `json:"machine_guid"`
	Hostname    string   `json:"hostname"`
	Rooms       []string `json:"rooms"`
	PublicKey   string   `json:"public_key"`
	Assertion   string   `json:"assertion"`
}

type claimReply struct {
	ClaimID      string `json:"claimed_id"`
	ErrorKey     string `json:"errorMsgKey"`
	ErrorMessage string `json:"errorMessage"`
}

// Claim registers this node with the space the token belongs to. It makes
// exactly one request.
func (c *Client) Claim(ctx context.Context, req claim.Request) error {
	endpoint, err := claimURL(req.BaseURL, c.identity.NodeID)
	if err != nil {
		return err
	}

	httpClient, err := webclient.New(webclient.Options{Timeout: c.timeout, Proxy: req.Proxy, Insecure: req.Insecure})
	if err != nil {
		return fmt.Errorf("proxy configuration: %w", err)
	}

	key, err := c.keys.LoadOrCreate()
	if err != nil {
		return fmt.Errorf("host key: %w", err)
	}
	publicPEM, kid, err := PublicKey(key)
	if err != nil {
		return fmt.Errorf("host key: %w", err)
	}
	assertion, err := signAssertion(key, kid, c.identity, req.BaseURL, c.now())
	if err != nil {
		return fmt.Errorf("sign assertion: %w", err)
	}

	rooms := req.Rooms
	if rooms == nil {
		rooms = []string{}
	}
	payload, err := json.Marshal(claimBody{
		NodeID:      c.identity.NodeID,
		MachineGUID: c.identity.MachineGUID,
		Hostname:    c.identity.Hostname,
		Rooms:       rooms,
		PublicKey:   publicPEM,
		Assertion:   assertion,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", httpReq.URL.Host, unwrapURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read claim response: %w", err)
	}

	var reply claimReply
	if len(body) > 0 {
		if err := json.Unmarshal(body, &reply); err != nil {
			c.log.Debug("claim response is not json", zap.Int("status", resp.StatusCode))
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.remoteError(resp.StatusCode, reply)
	}

	claimID := reply.ClaimID
	if claimID == "" {
		claimID = c.identity.NodeID
	}
	if c.recorder != nil {
		if err := c.recorder.RecordClaim(ctx, claimID, req.BaseURL, req.Rooms); err != nil {
			return fmt.Errorf("claimed, but cannot save the claim: %w", err)
		}
	}
	c.log.Info("claim accepted", zap.String("claim_id", claimID))
	return nil
}

func (c *Client) remoteError(status int, reply claimReply) error {
	reason := strings.TrimSpace(c.sanitizer.Sanitize(reply.ErrorMessage))
	if reason == "" {
		reason = fmt.Sprintf("cloud answered HTTP %d %s", status, http.StatusText(status))
	}
	rerr := &RemoteError{Status: status, Key: reply.ErrorKey, Reason: reason}
	if status == http.StatusTooManyRequests || logging.IsRateLimit(rerr) {
		rerr.Reason = "rate limited by the cloud, retry later: " + reason
	}
	return rerr
}

func claimURL(base, nodeID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("invalid cloud url %q", base)
	}
	return strings.TrimRight(base, "/") + claimPath + url.PathEscape(nodeID), nil
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
