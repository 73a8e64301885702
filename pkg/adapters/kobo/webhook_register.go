package kobo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/logging"
)

// RegisterWebhook registers webhookURL with the forms platform so it starts
// pushing submissions to this service. registrationURL is the platform's
// per-asset hook endpoint.
func (c *Client) RegisterWebhook(ctx context.Context, registrationURL, webhookURL string) error {
	body, err := json.Marshal(map[string]string{"url": webhookURL})
	if err != nil {
		return fmt.Errorf("failed to marshal registration payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationURL, bytes.NewReader(body))
	if err != nil {
		return &apperrors.TransportError{URL: logging.SanitizeURL(registrationURL), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperrors.TransportError{URL: logging.SanitizeURL(registrationURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apperrors.TransportError{
			URL: logging.SanitizeURL(registrationURL),
			Err: fmt.Errorf("registration failed with status %d: %s", resp.StatusCode, detail),
		}
	}
	return nil
}
