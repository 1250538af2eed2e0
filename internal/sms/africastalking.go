package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AfricasTalking talks to the Africa's Talking bulk messaging API. The
// sandbox host is free and sends nothing; production sends real SMS.
type AfricasTalking struct {
	username string
	apiKey   string
	senderID string
	baseURL  string
	client   *http.Client
}

func NewAfricasTalking(username, apiKey, senderID, baseURL string, timeout time.Duration) *AfricasTalking {
	return &AfricasTalking{
		username: username,
		apiKey:   apiKey,
		senderID: senderID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
	}
}

type atResponse struct {
	SMSMessageData struct {
		Recipients []struct {
			Status string `json:"status"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (a *AfricasTalking) SendBulk(ctx context.Context, phones []string, message string) (int, error) {
	if len(phones) == 0 {
		return 0, fmt.Errorf("no recipients")
	}

	formatted := make([]string, 0, len(phones))
	for _, p := range phones {
		if n := NormalizePhone(p); n != "" {
			formatted = append(formatted, n)
		}
	}
	if len(formatted) == 0 {
		return 0, fmt.Errorf("no valid recipients after normalization")
	}

	form := url.Values{}
	form.Set("username", a.username)
	form.Set("to", strings.Join(formatted, ","))
	form.Set("message", message)
	form.Set("from", a.senderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data atResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	accepted := 0
	for _, r := range data.SMSMessageData.Recipients {
		if r.Status == "Success" {
			accepted++
		}
	}
	if accepted == 0 {
		return 0, fmt.Errorf("gateway accepted none of %d recipients", len(formatted))
	}
	return accepted, nil
}
