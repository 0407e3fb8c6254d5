package graph

import (
	"context"
	"net/url"
	"strings"
)

// TokenResult is the payload of a token exchange. ExpiresIn is zero when the
// upstream omitted it.
type TokenResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// FirstAdAccount returns the id of the first ad account visible to the token,
// or "" when there is none.
func (c *HTTPClient) FirstAdAccount(ctx context.Context, accessToken string) (string, error) {
	params := url.Values{}
	params.Set("fields", "id,name")
	params.Set("limit", "1")
	resp, err := c.Get(ctx, accessToken, "/me/adaccounts", params)
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return stringValue(resp.Data[0]["id"]), nil
}

// ExchangeLongLivedToken upgrades a short-lived user token.
func (c *HTTPClient) ExchangeLongLivedToken(ctx context.Context, appID, appSecret, shortLivedToken string) (*TokenResult, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", appID)
	params.Set("client_secret", appSecret)
	params.Set("fb_exchange_token", shortLivedToken)

	resp, err := c.Get(ctx, "", "/oauth/access_token", params)
	if err != nil {
		return nil, err
	}
	token := &TokenResult{
		AccessToken: strings.TrimSpace(stringValue(resp.Raw["access_token"])),
		TokenType:   stringValue(resp.Raw["token_type"]),
	}
	if exp, ok := resp.Raw["expires_in"]; ok && exp != nil {
		token.ExpiresIn = int64Value(exp)
	}
	if token.AccessToken == "" {
		return nil, &UpstreamError{StatusCode: 200, Message: "long-lived token exchange returned no access token"}
	}
	return token, nil
}
