package bungie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clangraph/lib/monitoring"
	"clangraph/lib/utils/logging"
	"clangraph/lib/utils/network"
	"clangraph/lib/utils/retry"

	"golang.org/x/time/rate"
)

var logger = logging.NewLogger("BUNGIE_CLIENT")

type BungieHttpResult[T any] struct {
	Success           bool
	Data              *T
	BungieErrorCode   int
	BungieErrorStatus string
	HttpStatusCode    int
}

func (r *BungieHttpResult[T]) FormatError(keys ...string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%s (%d)", r.BungieErrorStatus, r.BungieErrorCode)
	}
	return fmt.Errorf("%s: %s (%d)", strings.Join(keys, " | "), r.BungieErrorStatus, r.BungieErrorCode)
}

// IsPrivacyRestricted reports the visibility-restricted signal
func (r *BungieHttpResult[T]) IsPrivacyRestricted() bool {
	return r != nil && !r.Success && r.BungieErrorCode == DestinyPrivacyRestriction
}

// DataSourceError is returned once a request failed for good: a
// non-retryable failure, or a transient one that exhausted its retries
type DataSourceError struct {
	Endpoint string
	Err      error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("bungie %s: %s", e.Endpoint, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// Config configures a BungieClient. Zero values fall back to sane defaults.
type Config struct {
	APIKey       string
	BaseURL      string // www.bungie.net
	StatsBaseURL string // stats.bungie.net, serves PGCRs
	Timeout      time.Duration
	// Requests per second allowed against each host
	RequestsPerSecond      float64
	StatsRequestsPerSecond float64
	// Retry overrides the transient failure retry policy
	Retry      *retry.RetryConfig
	HttpClient *http.Client
}

type BungieClient struct {
	httpClient   *http.Client
	baseURL      string
	statsBaseURL string
	apiKey       string
	wwwLimiter   *rate.Limiter
	statsLimiter *rate.Limiter
	retryConfig  *retry.RetryConfig
}

func NewClient(cfg Config) *BungieClient {
	httpClient := cfg.HttpClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &BungieClient{
		httpClient:   httpClient,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		statsBaseURL: strings.TrimSuffix(cfg.StatsBaseURL, "/"),
		apiKey:       cfg.APIKey,
		wwwLimiter:   newLimiter(cfg.RequestsPerSecond, 12, 25),
		statsLimiter: newLimiter(cfg.StatsRequestsPerSecond, 40, 90),
		retryConfig:  cfg.Retry,
	}
}

func newLimiter(rps float64, defaultRps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = defaultRps
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func isTransientBungieError(err error) bool {
	var bungieErr *BungieError
	return errors.As(err, &bungieErr) && transientErrorCodes[bungieErr.ErrorCode]
}

// throttleDelay is the wait Bungie asks for when a game server throttles us
func throttleDelay(err error) time.Duration {
	var bungieErr *BungieError
	if errors.As(err, &bungieErr) && bungieErr.ErrorCode == DestinyThrottledByGameServer {
		return time.Duration(bungieErr.ThrottleSeconds) * time.Second
	}
	return 0
}

// get performs one logical request. Bungie error envelopes come back as a
// non-success result; only failures that leave us without an envelope (after
// retries) are returned as a *DataSourceError.
func get[T any](ctx context.Context, c *BungieClient, limiter *rate.Limiter, endpoint string, reqURL string) (*BungieHttpResult[T], error) {
	start := time.Now()
	fields := map[string]any{
		logging.ENDPOINT: endpoint,
		logging.PATH:     reqURL,
	}
	config := network.TransientNetworkErrorRetryConfig(logger, fields)
	if c.retryConfig != nil {
		config = *c.retryConfig
	}
	// Throttling and unhandled-exception envelopes are part of the transient class
	shouldRetry := config.ShouldRetry
	config.ShouldRetry = func(err error) bool {
		return isTransientBungieError(err) || (shouldRetry != nil && shouldRetry(err))
	}
	if config.MinDelay == nil {
		config.MinDelay = throttleDelay
	}

	result, err := retry.WithRetryForResult(ctx, config, func(attempt int) (*BungieHttpResult[T], error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return doRequest[T](ctx, c, reqURL)
	})

	status := "success"
	if err != nil {
		status = "error"
	} else if !result.Success {
		status = result.BungieErrorStatus
	}
	monitoring.BungieRequestDuration.WithLabelValues(endpoint, status).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		if network.ShouldLogAsError(err) {
			logger.Error("BUNGIE_REQUEST_FAILED", err, fields)
		} else {
			logger.Warn("BUNGIE_REQUEST_FAILED", err, fields)
		}
		return nil, &DataSourceError{Endpoint: endpoint, Err: err}
	}
	return result, nil
}

func doRequest[T any](ctx context.Context, c *BungieClient, reqURL string) (*BungieHttpResult[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if resp.StatusCode >= 500 {
			return nil, &network.HttpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return nil, &network.UnexpectedContentError{StatusCode: resp.StatusCode, ContentType: mediaType}
	}

	var envelope BungieResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if resp.StatusCode >= 500 {
			return nil, &network.HttpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if transientErrorCodes[envelope.ErrorCode] {
		return nil, &BungieError{
			ErrorCode:       envelope.ErrorCode,
			Message:         envelope.Message,
			ErrorStatus:     envelope.ErrorStatus,
			ThrottleSeconds: envelope.ThrottleSeconds,
		}
	}

	success := resp.StatusCode == http.StatusOK && envelope.ErrorCode == Success
	result := &BungieHttpResult[T]{
		Success:           success,
		BungieErrorCode:   envelope.ErrorCode,
		BungieErrorStatus: envelope.ErrorStatus,
		HttpStatusCode:    resp.StatusCode,
	}
	if success {
		result.Data = envelope.Response
	}
	return result, nil
}

func (c *BungieClient) GetGroupByName(ctx context.Context, name string, groupType int) (*BungieHttpResult[GroupResponse], error) {
	reqURL := fmt.Sprintf("%s/Platform/GroupV2/Name/%s/%d/", c.baseURL, url.PathEscape(name), groupType)
	return get[GroupResponse](ctx, c, c.wwwLimiter, "GroupV2.GetGroupByName", reqURL)
}

func (c *BungieClient) GetMembersOfGroup(ctx context.Context, groupId int64, page int) (*BungieHttpResult[SearchResultOfGroupMember], error) {
	url := fmt.Sprintf("%s/Platform/GroupV2/%d/Members/?currentpage=%d&memberType=0", c.baseURL, groupId, page)
	return get[SearchResultOfGroupMember](ctx, c, c.wwwLimiter, "GroupV2.GetMembersOfGroup", url)
}

func (c *BungieClient) GetProfile(ctx context.Context, membershipType int, membershipId int64, components []int) (*BungieHttpResult[DestinyProfileResponse], error) {
	componentStrs := make([]string, len(components))
	for i, component := range components {
		componentStrs[i] = strconv.Itoa(component)
	}
	url := fmt.Sprintf("%s/Platform/Destiny2/%d/Profile/%d/?components=%s", c.baseURL, membershipType, membershipId, strings.Join(componentStrs, ","))
	return get[DestinyProfileResponse](ctx, c, c.wwwLimiter, "Destiny2.GetProfile", url)
}

func (c *BungieClient) GetActivityHistoryPage(ctx context.Context, membershipType int, membershipId int64, characterId int64, count int, page int, mode int) (*BungieHttpResult[DestinyActivityHistoryResults], error) {
	url := fmt.Sprintf("%s/Platform/Destiny2/%d/Account/%d/Character/%d/Stats/Activities/?mode=%d&count=%d&page=%d", c.baseURL, membershipType, membershipId, characterId, mode, count, page)
	return get[DestinyActivityHistoryResults](ctx, c, c.wwwLimiter, "Destiny2.GetActivityHistory", url)
}

func (c *BungieClient) GetPGCR(ctx context.Context, instanceId int64) (*BungieHttpResult[DestinyPostGameCarnageReport], error) {
	url := fmt.Sprintf("%s/Platform/Destiny2/Stats/PostGameCarnageReport/%d/", c.statsBaseURL, instanceId)
	return get[DestinyPostGameCarnageReport](ctx, c, c.statsLimiter, "Destiny2.GetPostGameCarnageReport", url)
}
