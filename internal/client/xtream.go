package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.uber.org/ratelimit"
	"golang.org/x/sync/singleflight"

	"xtream-web-go/internal/config"
)

// apiMaxBytes caps buffered player_api.php replies; full VOD catalogues of
// large panels run to several megabytes.
const apiMaxBytes = 32 << 20

// XtreamClient calls the player_api.php endpoint of registered panels.
type XtreamClient struct {
	upstream *UpstreamClient
	limiter  ratelimit.Limiter
	group    singleflight.Group
	logger   *slog.Logger
}

// NewXtreamClient creates an XtreamClient. Outbound calls are paced at
// upstream.api_requests_per_second (0 disables pacing).
func NewXtreamClient(cfg *config.Config, up *UpstreamClient, logger *slog.Logger) *XtreamClient {
	limiter := ratelimit.NewUnlimited()
	if rps := cfg.Upstream.APIRequestsPerSecond; rps > 0 {
		limiter = ratelimit.New(rps)
	}
	return &XtreamClient{
		upstream: up,
		limiter:  limiter,
		logger:   logger.With("component", "xtream_client"),
	}
}

// PlayerAPIURL builds <baseURL>/player_api.php?<query>.
func PlayerAPIURL(baseURL string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/player_api.php")
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// PlayerAPI fetches player_api.php on the panel at baseURL. Identical calls
// in flight at the same time share one upstream request.
func (x *XtreamClient) PlayerAPI(ctx context.Context, baseURL string, query url.Values) (*FetchResult, error) {
	target, err := PlayerAPIURL(baseURL, query)
	if err != nil {
		return nil, err
	}

	// The shared call must not die with whichever caller happened to start it.
	callCtx := context.WithoutCancel(ctx)
	ch := x.group.DoChan(target, func() (any, error) {
		x.limiter.Take()
		return x.upstream.Fetch(callCtx, KindAPI, target, apiMaxBytes)
	})

	// A caller that goes away stops waiting on the pacing bucket and the fetch.
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		x.logger.Debug("player_api call shared", "action", query.Get("action"))
	}
	return res.Val.(*FetchResult), nil
}
