package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/adapter/graph"
	"github.com/smallbiznis/adsbridge/internal/config"
	"github.com/smallbiznis/adsbridge/internal/domain"
	"github.com/smallbiznis/adsbridge/internal/http/middleware"
)

const (
	errAdAccountRequired = "adAccountId is required. Provide it as a query parameter or authenticate with an ad account."
	errInvalidTimeRange  = `Invalid timeRange format. Expected JSON: {"since":"YYYY-MM-DD","until":"YYYY-MM-DD"}`
)

// MetaHandler proxies ads data reads for gated requests.
type MetaHandler struct {
	Graph  graph.Client
	leads  graph.LeadsQuery
	logger *zap.Logger
}

// NewMetaHandler creates the data endpoint handlers.
func NewMetaHandler(client graph.Client, cfg config.Config, logger *zap.Logger) *MetaHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &MetaHandler{
		Graph: client,
		leads: graph.LeadsQuery{
			MaxForms:     cfg.LeadsMaxForms,
			LeadsPerForm: cfg.LeadsPerForm,
		},
		logger: logger,
	}
}

// Accounts lists the ad accounts reachable with the caller's token.
func (h *MetaHandler) Accounts(c *gin.Context) {
	token, _ := middleware.GetAccessToken(c)
	resp, err := h.Graph.ListAdAccounts(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, resp)
}

// Campaigns lists campaigns for the resolved ad account.
func (h *MetaHandler) Campaigns(c *gin.Context) {
	token, accountID, ok := h.requireAccount(c)
	if !ok {
		return
	}
	resp, err := h.Graph.ListCampaigns(c.Request.Context(), token, accountID, graph.CampaignQuery{
		Limit:  c.Query("limit"),
		Fields: c.Query("fields"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, resp)
}

// Spend lists spend insights, optionally over an explicit timeRange.
func (h *MetaHandler) Spend(c *gin.Context) {
	token, accountID, ok := h.requireAccount(c)
	if !ok {
		return
	}

	query := graph.InsightsQuery{
		DatePreset: c.Query("datePreset"),
		Level:      c.Query("level"),
	}
	if raw := strings.TrimSpace(c.Query("timeRange")); raw != "" {
		tr, err := parseTimeRange(raw)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		query.TimeRange = tr
	}

	resp, err := h.Graph.ListInsights(c.Request.Context(), token, accountID, query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, resp)
}

// Leads returns leads flattened across the account's lead forms.
func (h *MetaHandler) Leads(c *gin.Context) {
	token, accountID, ok := h.requireAccount(c)
	if !ok {
		return
	}
	result, err := h.Graph.ListLeads(c.Request.Context(), token, accountID, h.leads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"data":           result.Leads,
		"paging":         nil,
		"formsProcessed": result.FormsProcessed,
		"formsFailed":    result.FormsFailed,
	})
}

// AdSets lists ad sets for the account, or for campaignId when given.
func (h *MetaHandler) AdSets(c *gin.Context) {
	token, accountID, ok := h.requireAccount(c)
	if !ok {
		return
	}
	resp, err := h.Graph.ListAdSets(c.Request.Context(), token, accountID, graph.AdSetQuery{
		CampaignID: c.Query("campaignId"),
		Limit:      c.Query("limit"),
		Fields:     c.Query("fields"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, resp)
}

func (h *MetaHandler) requireAccount(c *gin.Context) (string, string, bool) {
	token, _ := middleware.GetAccessToken(c)
	accountID := middleware.GetAdAccountID(c)
	if accountID == "" {
		accountID = strings.TrimSpace(c.Query("adAccountId"))
	}
	if accountID == "" {
		respondError(c, h.logger, domain.NewValidationError(errAdAccountRequired))
		return "", "", false
	}
	return token, accountID, true
}

// parseTimeRange accepts only a JSON object with both dates in YYYY-MM-DD form.
func parseTimeRange(raw string) (*graph.TimeRange, error) {
	var tr *graph.TimeRange
	if err := json.Unmarshal([]byte(raw), &tr); err != nil || tr == nil {
		return nil, domain.NewValidationError(errInvalidTimeRange)
	}
	for _, day := range []string{tr.Since, tr.Until} {
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return nil, domain.NewValidationError(errInvalidTimeRange)
		}
	}
	return tr, nil
}

func respondData(c *gin.Context, resp *graph.Response) {
	data := resp.Data
	if data == nil {
		data = []map[string]any{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"paging":  resp.Paging,
	})
}
