package graph

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

const (
	leadFormFields = "id,name,status,leads_count,created_time"
	leadFields     = "id,created_time,field_data,ad_id,ad_name,campaign_id,campaign_name"

	// DefaultMaxForms bounds how many lead forms are read per request.
	DefaultMaxForms = 5
	// DefaultLeadsPerForm bounds how many leads are read from each form.
	DefaultLeadsPerForm = 10
)

// LeadsQuery bounds the lead fan-out.
type LeadsQuery struct {
	MaxForms     int
	LeadsPerForm int
}

// LeadsResult is the flattened lead list with fan-out accounting.
// FormsFailed counts forms whose leads could not be read; their leads are absent.
// FormsPaging pages through lead forms, not leads; the flattened list has no cursor.
type LeadsResult struct {
	Leads          []map[string]any
	FormsPaging    map[string]any
	FormsTotal     int
	FormsProcessed int
	FormsFailed    int
}

// ListLeads lists the account's lead forms, then reads leads from at most
// MaxForms of them sequentially. Each lead is tagged with form_id and form_name.
// A failing form is logged and skipped; a failure listing forms fails the call.
func (c *HTTPClient) ListLeads(ctx context.Context, accessToken, accountID string, q LeadsQuery) (*LeadsResult, error) {
	maxForms := q.MaxForms
	if maxForms <= 0 {
		maxForms = DefaultMaxForms
	}
	perForm := q.LeadsPerForm
	if perForm <= 0 {
		perForm = DefaultLeadsPerForm
	}

	formParams := url.Values{}
	formParams.Set("fields", leadFormFields)
	forms, err := c.Get(ctx, accessToken, "/"+domain.NormalizeAdAccountID(accountID)+"/leadgen_forms", formParams)
	if err != nil {
		return nil, err
	}

	selected := forms.Data
	if len(selected) > maxForms {
		selected = selected[:maxForms]
	}

	result := &LeadsResult{
		Leads:       []map[string]any{},
		FormsPaging: forms.Paging,
		FormsTotal:  len(forms.Data),
	}

	leadParams := url.Values{}
	leadParams.Set("fields", leadFields)
	leadParams.Set("limit", strconv.Itoa(perForm))

	for _, form := range selected {
		formID := stringValue(form["id"])
		formName := stringValue(form["name"])
		if formID == "" {
			continue
		}
		result.FormsProcessed++

		leads, err := c.Get(ctx, accessToken, "/"+url.PathEscape(formID)+"/leads", leadParams)
		if err != nil {
			result.FormsFailed++
			c.logger.Warn("fetch leads for form failed",
				zap.String("form_id", formID),
				zap.String("form_name", formName),
				zap.Error(err),
			)
			continue
		}
		for _, lead := range leads.Data {
			lead["form_id"] = formID
			lead["form_name"] = formName
			result.Leads = append(result.Leads, lead)
		}
	}

	return result, nil
}
