package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Ping checks the backend's /healthz, which lives at the host root rather than under the API prefix.
func (c *Client) Ping(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	u.Path = "/healthz"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Endpoint: "GET /healthz"}
	}
	return nil
}
