// Package crm содержит HTTP-клиент CRM для пометки контактов купленными продуктами.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/worksmart-portal/internal/config"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// TagRequest тело запроса POST /contacts/tags.
type TagRequest struct {
	ExternalID string `json:"external_id"`
	Tag        string `json:"tag"`
	Source     string `json:"source"`
	SessionID  string `json:"session_id,omitempty"`
}

// Client вызывает API CRM.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент CRM с таймаутом из конфига.
func NewClient(cfg config.CRM) *Client {
	return &Client{
		apiURL:     strings.TrimRight(cfg.CRMAPIURL, "/"),
		apiKey:     cfg.CRMAPIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// TagContact помечает контакт аккаунта тегом купленного продукта.
// Повторная пометка тем же тегом на стороне CRM ничего не меняет.
func (c *Client) TagContact(ctx context.Context, ev models.EntitlementGranted) error {
	const op = "crm.TagContact"

	req, err := c.newRequest(ctx, http.MethodPost, "/contacts/tags", TagRequest{
		ExternalID: ev.AccountID,
		Tag:        ev.ProductType,
		Source:     "worksmart-portal",
		SessionID:  ev.SessionID,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, models.ErrDownstreamProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %w: unexpected status %s: %s", op, models.ErrDownstreamProvider, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
