package link

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stake-plus/claimd/src/claim"
	"github.com/stake-plus/claimd/src/webclient"
)

const (
	probeAttempts = 3
	probeDelay    = time.Second
)

// HTTPProber asks the cloud for this node's status.
type HTTPProber struct {
	NodeID   string
	Settings claim.Settings
	Timeout  time.Duration
}

func (p HTTPProber) Probe(ctx context.Context, baseURL string) error {
	opts := webclient.Options{Timeout: p.Timeout}
	if p.Settings != nil {
		opts.Proxy = p.Settings.Proxy()
		opts.Insecure = p.Settings.Insecure()
	}
	client, err := webclient.New(opts)
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/api/v1/spaces/nodes/" + url.PathEscape(p.NodeID) + "/status"
	status, _, err := webclient.DoWithRetry(ctx, probeAttempts, probeDelay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return resp.StatusCode, nil, nil
	})
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusForbidden || status == http.StatusGone:
		return fmt.Errorf("%w (HTTP %d)", ErrBanned, status)
	case status < 200 || status > 299:
		return fmt.Errorf("status: HTTP %d", status)
	}
	return nil
}
