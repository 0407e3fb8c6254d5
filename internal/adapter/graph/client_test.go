package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedRequest struct {
	Path  string
	Query url.Values
}

type fakeGraph struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeGraph(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeGraph, *HTTPClient) {
	t.Helper()
	fg := &fakeGraph{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fg.mu.Lock()
		fg.requests = append(fg.requests, recordedRequest{Path: r.URL.Path, Query: r.URL.Query()})
		fg.mu.Unlock()
		fg.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return fg, NewHTTPClient(srv.URL+"/v19.0", srv.Client(), zap.NewNop())
}

func (f *fakeGraph) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestGetSendsAccessTokenAndDecodesEnvelope(t *testing.T) {
	fg, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":   []any{map[string]any{"id": "act_1", "name": "Main"}},
			"paging": map[string]any{"cursors": map[string]any{"after": "abc"}},
		})
	})

	resp, err := client.ListAdAccounts(context.Background(), "tok-123")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "act_1", resp.Data[0]["id"])
	require.NotNil(t, resp.Paging)

	req := fg.last()
	require.Equal(t, "/v19.0/me/adaccounts", req.Path)
	require.Equal(t, "tok-123", req.Query.Get("access_token"))
	require.Equal(t, adAccountFields, req.Query.Get("fields"))
}

func TestGetMapsGraphErrorMessage(t *testing.T) {
	_, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"message": "Invalid OAuth access token.", "code": 190},
		})
	})

	_, err := client.ListAdAccounts(context.Background(), "bad")
	require.Error(t, err)
	upErr, ok := AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, upErr.StatusCode)
	require.Equal(t, "Invalid OAuth access token.", upErr.Message)
}

func TestGetFallsBackToStatusMessage(t *testing.T) {
	_, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := client.ListAdAccounts(context.Background(), "tok")
	upErr, ok := AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, upErr.StatusCode)
	require.Equal(t, "request failed with status code 502", upErr.Message)
}

func TestTransportErrorDoesNotLeakToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	client := NewHTTPClient(base+"/v19.0", &http.Client{}, zap.NewNop())
	_, err := client.ListAdAccounts(context.Background(), "super-secret-token")
	require.Error(t, err)
	upErr, ok := AsUpstreamError(err)
	require.True(t, ok)
	require.Zero(t, upErr.StatusCode)
	require.NotContains(t, err.Error(), "super-secret-token")
}

func TestListCampaignsNormalizesAccountAndAppliesDefaults(t *testing.T) {
	fg, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})

	_, err := client.ListCampaigns(context.Background(), "tok", "123", CampaignQuery{})
	require.NoError(t, err)
	req := fg.last()
	require.Equal(t, "/v19.0/act_123/campaigns", req.Path)
	require.Equal(t, "25", req.Query.Get("limit"))
	require.Equal(t, campaignFields, req.Query.Get("fields"))

	_, err = client.ListCampaigns(context.Background(), "tok", "act_123", CampaignQuery{Limit: "5", Fields: "id"})
	require.NoError(t, err)
	req = fg.last()
	require.Equal(t, "/v19.0/act_123/campaigns", req.Path)
	require.Equal(t, "5", req.Query.Get("limit"))
	require.Equal(t, "id", req.Query.Get("fields"))
}

func TestListAdSetsScopesToCampaign(t *testing.T) {
	fg, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})

	_, err := client.ListAdSets(context.Background(), "tok", "act_9", AdSetQuery{})
	require.NoError(t, err)
	require.Equal(t, "/v19.0/act_9/adsets", fg.last().Path)

	_, err = client.ListAdSets(context.Background(), "tok", "act_9", AdSetQuery{CampaignID: "c42"})
	require.NoError(t, err)
	require.Equal(t, "/v19.0/c42/adsets", fg.last().Path)
}

func TestListInsightsPresetAndTimeRange(t *testing.T) {
	fg, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})

	_, err := client.ListInsights(context.Background(), "tok", "act_1", InsightsQuery{})
	require.NoError(t, err)
	req := fg.last()
	require.Equal(t, "/v19.0/act_1/insights", req.Path)
	require.Equal(t, "last_30d", req.Query.Get("date_preset"))
	require.Equal(t, "campaign", req.Query.Get("level"))
	require.Empty(t, req.Query.Get("time_range"))

	_, err = client.ListInsights(context.Background(), "tok", "act_1", InsightsQuery{
		Level:     "adset",
		TimeRange: &TimeRange{Since: "2024-01-01", Until: "2024-01-31"},
	})
	require.NoError(t, err)
	req = fg.last()
	require.Equal(t, "adset", req.Query.Get("level"))
	require.Empty(t, req.Query.Get("date_preset"))
	require.JSONEq(t, `{"since":"2024-01-01","until":"2024-01-31"}`, req.Query.Get("time_range"))
}

func TestListLeadsFanOutTagsAndSkipsFailedForm(t *testing.T) {
	forms := make([]any, 0, 7)
	for i := 1; i <= 7; i++ {
		forms = append(forms, map[string]any{"id": fmt.Sprintf("f%d", i), "name": fmt.Sprintf("Form %d", i)})
	}

	fg, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v19.0/act_1/leadgen_forms":
			writeJSON(w, http.StatusOK, map[string]any{
				"data":   forms,
				"paging": map[string]any{"cursors": map[string]any{"after": "form-cursor"}},
			})
		case r.URL.Path == "/v19.0/f3/leads":
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "boom"}})
		case strings.HasSuffix(r.URL.Path, "/leads"):
			formID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v19.0/"), "/leads")
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{
				map[string]any{"id": formID + "-lead"},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := client.ListLeads(context.Background(), "tok", "act_1", LeadsQuery{})
	require.NoError(t, err)
	require.Equal(t, 7, result.FormsTotal)
	require.Equal(t, 5, result.FormsProcessed)
	require.Equal(t, 1, result.FormsFailed)
	require.Len(t, result.Leads, 4)
	require.Equal(t, "form-cursor", result.FormsPaging["cursors"].(map[string]any)["after"])

	var formIDs []string
	for _, lead := range result.Leads {
		formID := lead["form_id"].(string)
		formIDs = append(formIDs, formID)
		require.Equal(t, formID+"-lead", lead["id"])
		require.Equal(t, "Form "+strings.TrimPrefix(formID, "f"), lead["form_name"])
	}
	require.Equal(t, []string{"f1", "f2", "f4", "f5"}, formIDs)

	fg.mu.Lock()
	defer fg.mu.Unlock()
	for _, req := range fg.requests {
		require.NotEqual(t, "/v19.0/f6/leads", req.Path)
		require.NotEqual(t, "/v19.0/f7/leads", req.Path)
		if strings.HasSuffix(req.Path, "/leads") {
			require.Equal(t, "10", req.Query.Get("limit"))
		}
	}
}

func TestListLeadsFailsWhenFormsCannotBeListed(t *testing.T) {
	_, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": map[string]any{"message": "no permission"}})
	})

	_, err := client.ListLeads(context.Background(), "tok", "act_1", LeadsQuery{})
	upErr, ok := AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, "no permission", upErr.Message)
}

func TestExchangeLongLivedToken(t *testing.T) {
	fg, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "long-tok", "token_type": "bearer"})
	})

	tok, err := client.ExchangeLongLivedToken(context.Background(), "app", "secret", "short-tok")
	require.NoError(t, err)
	require.Equal(t, "long-tok", tok.AccessToken)
	require.Zero(t, tok.ExpiresIn)

	req := fg.last()
	require.Equal(t, "/v19.0/oauth/access_token", req.Path)
	require.Equal(t, "fb_exchange_token", req.Query.Get("grant_type"))
	require.Equal(t, "short-tok", req.Query.Get("fb_exchange_token"))
	require.Empty(t, req.Query.Get("access_token"))
}

func TestExchangeLongLivedTokenWithExpiry(t *testing.T) {
	_, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"long-tok","token_type":"bearer","expires_in":5183944}`))
	})

	tok, err := client.ExchangeLongLivedToken(context.Background(), "app", "secret", "short-tok")
	require.NoError(t, err)
	require.Equal(t, "long-tok", tok.AccessToken)
	require.Equal(t, int64(5183944), tok.ExpiresIn)
}

func TestInt64Value(t *testing.T) {
	require.Equal(t, int64(42), int64Value(json.Number("42")))
	require.Equal(t, int64(42), int64Value(json.Number("42.9")))
	require.Equal(t, int64(7), int64Value(float64(7)))
	require.Equal(t, int64(9), int64Value("9"))
	require.Zero(t, int64Value(json.Number("abc")))
	require.Zero(t, int64Value(nil))
}

func TestFirstAdAccount(t *testing.T) {
	empty := false
	_, client := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if empty {
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{map[string]any{"id": "act_77"}}})
	})

	id, err := client.FirstAdAccount(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "act_77", id)

	empty = true
	id, err = client.FirstAdAccount(context.Background(), "tok")
	require.NoError(t, err)
	require.Empty(t, id)
}
