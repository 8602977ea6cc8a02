// graph.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpClient is shared by every outbound platform call. The timeout bounds
// the credential probe and profile fetches so they can never hold up webhook
// acknowledgement.
var httpClient = &http.Client{
	Timeout: 10 * time.Second,
}

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// GraphClient performs read-only lookups against the platform Graph API.
type GraphClient struct {
	baseURL string
	client  *http.Client
}

func NewGraphClient(baseURL string) *GraphClient {
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	return &GraphClient{baseURL: baseURL, client: httpClient}
}

// Probe implements resolver.Prober: it fetches accountID with the given
// tenant credential and reports the username the platform returns. A
// non-error response without a username comes back as "".
func (g *GraphClient) Probe(ctx context.Context, accessToken, accountID string) (string, error) {
	body, err := g.get(ctx, accountID, "username", accessToken)
	if err != nil {
		return "", err
	}

	var account struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return "", fmt.Errorf("error parsing account response: %v", err)
	}
	return account.Username, nil
}

// FetchProfile looks up the display name of a message sender.
func (g *GraphClient) FetchProfile(ctx context.Context, userID, accessToken string) (string, error) {
	body, err := g.get(ctx, userID, "name,username", accessToken)
	if err != nil {
		return "", err
	}

	var profile struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return "", fmt.Errorf("error parsing profile response: %v", err)
	}
	if profile.Name != "" {
		return profile.Name, nil
	}
	if profile.Username != "" {
		return profile.Username, nil
	}
	return "", fmt.Errorf("profile response had no name for user %s", userID)
}

func (g *GraphClient) get(ctx context.Context, id, fields, accessToken string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=%s&access_token=%s",
		g.baseURL, url.PathEscape(id), url.QueryEscape(fields), url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating graph request: %v", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling graph api: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading graph response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
