package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/metrics"
)

const tracerName = "github.com/smallbiznis/adsbridge/internal/adapter/graph"

// Client is the read surface of the Graph API used by the service.
type Client interface {
	Get(ctx context.Context, accessToken, path string, params url.Values) (*Response, error)
	ListAdAccounts(ctx context.Context, accessToken string) (*Response, error)
	ListCampaigns(ctx context.Context, accessToken, accountID string, q CampaignQuery) (*Response, error)
	ListAdSets(ctx context.Context, accessToken, accountID string, q AdSetQuery) (*Response, error)
	ListInsights(ctx context.Context, accessToken, accountID string, q InsightsQuery) (*Response, error)
	ListLeads(ctx context.Context, accessToken, accountID string, q LeadsQuery) (*LeadsResult, error)
	FirstAdAccount(ctx context.Context, accessToken string) (string, error)
	ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortLivedToken string) (*TokenResult, error)
}

// Response is a decoded Graph API payload.
type Response struct {
	Data   []map[string]any
	Paging map[string]any
	Raw    map[string]any
}

// HTTPClient is the default Client implementation.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client rooted at the versioned Graph URL,
// e.g. https://graph.facebook.com/v19.0.
func NewHTTPClient(baseURL string, client *http.Client, logger *zap.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.L()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

// Get issues a GET to path with params and the access token as a query parameter.
func (c *HTTPClient) Get(ctx context.Context, accessToken, path string, params url.Values) (*Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "graph.get")
	defer span.End()
	span.SetAttributes(attribute.String("graph.path", path))

	start := time.Now()
	resp, status, err := c.do(ctx, accessToken, path, params)
	metrics.ObserveUpstream(status, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("graph request failed", zap.String("path", path), zap.Int("status", status), zap.Error(err))
		return nil, err
	}
	c.logger.Debug("graph request", zap.String("path", path), zap.Int("status", status))
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, accessToken, path string, params url.Values) (*Response, int, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	if accessToken != "" {
		query.Set("access_token", accessToken)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, &UpstreamError{Message: "build graph request: " + scrubURLError(err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &UpstreamError{Message: scrubURLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, &UpstreamError{StatusCode: resp.StatusCode, Message: "read graph response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.StatusCode),
		}
	}

	raw, err := decodeObject(body)
	if err != nil {
		return nil, resp.StatusCode, &UpstreamError{StatusCode: resp.StatusCode, Message: "decode graph response: " + err.Error()}
	}
	return newResponse(raw), resp.StatusCode, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func newResponse(raw map[string]any) *Response {
	out := &Response{Raw: raw}
	if items, ok := raw["data"].([]any); ok {
		out.Data = make([]map[string]any, 0, len(items))
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				out.Data = append(out.Data, obj)
			}
		}
	}
	if paging, ok := raw["paging"].(map[string]any); ok {
		out.Paging = paging
	}
	return out
}

// errorMessage extracts error.message from the Graph error envelope.
func errorMessage(body []byte, status int) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := strings.TrimSpace(envelope.Error.Message); msg != "" {
			return msg
		}
	}
	return "request failed with status code " + strconv.Itoa(status)
}

// scrubURLError drops the request URL, which carries the access token.
func scrubURLError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return fmt.Sprintf("%s graph request: %s", strings.ToLower(urlErr.Op), urlErr.Err.Error())
	}
	return err.Error()
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
