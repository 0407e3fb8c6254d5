package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

const (
	adAccountFields = "id,name,account_id,account_status,currency,timezone_name,amount_spent"
	campaignFields  = "id,name,status,objective,daily_budget,lifetime_budget,created_time,updated_time"
	adSetFields     = "id,name,status,campaign_id,daily_budget,lifetime_budget,targeting,created_time"
	insightFields   = "campaign_id,campaign_name,spend,impressions,clicks,cpc,cpm,ctr,reach,date_start,date_stop"

	defaultListLimit  = "25"
	defaultDatePreset = "last_30d"
	defaultLevel      = "campaign"
)

// CampaignQuery carries free-form overrides for campaign listing.
type CampaignQuery struct {
	Limit  string
	Fields string
}

// AdSetQuery scopes ad set listing to a campaign when CampaignID is set.
type AdSetQuery struct {
	CampaignID string
	Limit      string
	Fields     string
}

// TimeRange is an explicit reporting window, dates formatted YYYY-MM-DD.
type TimeRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// InsightsQuery shapes a spend insights request.
type InsightsQuery struct {
	DatePreset string
	Level      string
	TimeRange  *TimeRange
}

// ListAdAccounts lists the ad accounts visible to the token.
func (c *HTTPClient) ListAdAccounts(ctx context.Context, accessToken string) (*Response, error) {
	params := url.Values{}
	params.Set("fields", adAccountFields)
	return c.Get(ctx, accessToken, "/me/adaccounts", params)
}

// ListCampaigns lists campaigns for an ad account.
func (c *HTTPClient) ListCampaigns(ctx context.Context, accessToken, accountID string, q CampaignQuery) (*Response, error) {
	params := url.Values{}
	params.Set("fields", orDefault(q.Fields, campaignFields))
	params.Set("limit", orDefault(q.Limit, defaultListLimit))
	return c.Get(ctx, accessToken, "/"+domain.NormalizeAdAccountID(accountID)+"/campaigns", params)
}

// ListAdSets lists ad sets for an account, or for a single campaign when one is given.
func (c *HTTPClient) ListAdSets(ctx context.Context, accessToken, accountID string, q AdSetQuery) (*Response, error) {
	params := url.Values{}
	params.Set("fields", orDefault(q.Fields, adSetFields))
	params.Set("limit", orDefault(q.Limit, defaultListLimit))

	path := "/" + domain.NormalizeAdAccountID(accountID) + "/adsets"
	if campaignID := strings.TrimSpace(q.CampaignID); campaignID != "" {
		path = "/" + url.PathEscape(campaignID) + "/adsets"
	}
	return c.Get(ctx, accessToken, path, params)
}

// ListInsights lists spend insights. An explicit TimeRange replaces the date preset.
func (c *HTTPClient) ListInsights(ctx context.Context, accessToken, accountID string, q InsightsQuery) (*Response, error) {
	params := url.Values{}
	params.Set("fields", insightFields)
	params.Set("level", orDefault(q.Level, defaultLevel))
	if q.TimeRange != nil {
		encoded, err := json.Marshal(q.TimeRange)
		if err != nil {
			return nil, fmt.Errorf("encode time range: %w", err)
		}
		params.Set("time_range", string(encoded))
	} else {
		params.Set("date_preset", orDefault(q.DatePreset, defaultDatePreset))
	}
	return c.Get(ctx, accessToken, "/"+domain.NormalizeAdAccountID(accountID)+"/insights", params)
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
