package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/smallbiznis/adsbridge/internal/adapter/graph"
	"github.com/smallbiznis/adsbridge/internal/config"
	"github.com/smallbiznis/adsbridge/internal/domain"
	"github.com/smallbiznis/adsbridge/internal/metrics"
	"github.com/smallbiznis/adsbridge/internal/repository"
)

const (
	tracerName = "github.com/smallbiznis/adsbridge/internal/service/auth"

	// DefaultLongLivedTTL applies when the long-lived exchange omits expires_in.
	DefaultLongLivedTTL = 5184000 * time.Second
)

// StartOutput carries the authorization URL the user must visit.
type StartOutput struct {
	AuthURL string
	State   string
}

// CallbackInput captures the redirect query parameters.
type CallbackInput struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackOutput describes the stored credential.
type CallbackOutput struct {
	UserID    string
	ExpiresAt *time.Time
}

// StatusOutput reports the stored credential state for a user.
type StatusOutput struct {
	Authenticated bool
	Expired       bool
	ExpiresAt     *time.Time
	AdAccountID   *string
}

// Service runs the Meta OAuth exchange and persists the resulting credential.
type Service struct {
	cfg        config.Config
	oauth      *oauth2.Config
	repo       repository.CredentialRepository
	graph      graph.Client
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService wires the OAuth service.
func NewService(cfg config.Config, repo repository.CredentialRepository, client graph.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.L()
	}
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.MetaAppID,
			ClientSecret: cfg.MetaAppSecret,
			RedirectURL:  cfg.MetaRedirectURI,
			Scopes:       cfg.MetaScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.MetaDialogURL,
				TokenURL:  cfg.GraphURL() + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		repo:       repo,
		graph:      client,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Start builds the authorization URL for userID.
func (s *Service) Start(ctx context.Context, userID string) (*StartOutput, error) {
	_, span := s.tracer.Start(ctx, "auth.start")
	defer span.End()

	userID = strings.TrimSpace(userID)
	state, err := EncodeState(userID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return &StartOutput{
		AuthURL: s.oauth.AuthCodeURL(state),
		State:   state,
	}, nil
}

// Callback completes the exchange: short-lived token, best-effort long-lived
// upgrade, best-effort ad account discovery, then upsert.
func (s *Service) Callback(ctx context.Context, in CallbackInput) (*CallbackOutput, error) {
	ctx, span := s.tracer.Start(ctx, "auth.callback")
	defer span.End()

	out, err := s.callback(ctx, span, in)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrInvalidRequest) {
			outcome = "invalid"
		}
		metrics.OAuthCallbacksTotal.WithLabelValues(outcome).Inc()
		return nil, s.fail(span, err)
	}
	metrics.OAuthCallbacksTotal.WithLabelValues("success").Inc()
	return out, nil
}

func (s *Service) callback(ctx context.Context, span trace.Span, in CallbackInput) (*CallbackOutput, error) {
	if upstreamErr := strings.TrimSpace(in.Error); upstreamErr != "" {
		msg := strings.TrimSpace(in.ErrorDescription)
		if msg == "" {
			msg = upstreamErr
		}
		return nil, domain.NewValidationError("OAuth error: " + msg)
	}
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.State) == "" {
		return nil, domain.NewValidationError("Missing code or state parameter")
	}

	userID, err := DecodeState(in.State)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.user_id", userID))

	token, err := s.exchangeCode(ctx, in.Code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	accessToken := token.AccessToken
	tokenType := token.TokenType
	var expiresAt *time.Time
	if secs := expiresIn(token); secs > 0 {
		expiresAt = timePtr(now.Add(time.Duration(secs) * time.Second))
	}

	longLived, err := s.graph.ExchangeLongLivedToken(ctx, s.cfg.MetaAppID, s.cfg.MetaAppSecret, accessToken)
	if err != nil {
		s.logger.Warn("long-lived token exchange failed, keeping short-lived token",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else {
		accessToken = longLived.AccessToken
		if longLived.TokenType != "" {
			tokenType = longLived.TokenType
		}
		ttl := DefaultLongLivedTTL
		if longLived.ExpiresIn > 0 {
			ttl = time.Duration(longLived.ExpiresIn) * time.Second
		}
		expiresAt = timePtr(now.Add(ttl))
	}

	var adAccountID *string
	accountID, err := s.graph.FirstAdAccount(ctx, accessToken)
	if err != nil {
		s.logger.Warn("ad account discovery failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else {
		adAccountID = domain.StringPtr(accountID)
	}

	cred, err := s.repo.Upsert(ctx, userID, domain.CredentialFields{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		TokenType:   strings.ToLower(tokenType),
		AdAccountID: adAccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.logger.Info("meta credential stored",
		zap.String("user_id", userID),
		zap.Bool("long_lived", longLived != nil),
		zap.Bool("has_ad_account", adAccountID != nil),
	)
	return &CallbackOutput{UserID: cred.UserID, ExpiresAt: cred.ExpiresAt}, nil
}

// Status reports whether userID holds a usable credential.
func (s *Service) Status(ctx context.Context, userID string) (*StatusOutput, error) {
	ctx, span := s.tracer.Start(ctx, "auth.status")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, s.fail(span, domain.NewValidationError("userId is required"))
	}
	cred, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return &StatusOutput{}, nil
	}
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("load credential: %w", err))
	}
	return &StatusOutput{
		Authenticated: true,
		Expired:       cred.IsExpired(s.now()),
		ExpiresAt:     cred.ExpiresAt,
		AdAccountID:   cred.AdAccountID,
	}, nil
}

func (s *Service) exchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, exchangeError(err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, &graph.UpstreamError{Message: "no access token returned"}
	}
	return token, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// exchangeError converts an oauth2 failure into an UpstreamError carrying
// Graph's error.message when present.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return &graph.UpstreamError{Message: "token exchange failed: " + scrubOAuthError(err)}
	}
	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal(retrieveErr.Body, &envelope); jsonErr == nil && envelope.Error.Message != "" {
		return &graph.UpstreamError{StatusCode: status, Message: envelope.Error.Message}
	}
	if retrieveErr.ErrorDescription != "" {
		return &graph.UpstreamError{StatusCode: status, Message: retrieveErr.ErrorDescription}
	}
	return &graph.UpstreamError{StatusCode: status, Message: "request failed with status code " + strconv.Itoa(status)}
}

// scrubOAuthError keeps the message short; oauth2 transport errors embed the token URL only.
func scrubOAuthError(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "?"); i >= 0 {
		return msg[:i]
	}
	return msg
}

// expiresIn reads the raw expires_in value so the expiry is computed on the service clock.
func expiresIn(token *oauth2.Token) int64 {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if !token.Expiry.IsZero() {
		return int64(time.Until(token.Expiry).Seconds())
	}
	return 0
}

func timePtr(t time.Time) *time.Time {
	return &t
}
