// Package sendgrid sends mail through the SendGrid v3 API.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"campaigner/internal/domain"
)

type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type errorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) Name() string { return "sendgrid" }

func (c *Client) Configured() bool { return c.APIKey != "" }

func (c *Client) Send(ctx context.Context, msg domain.EmailMessage) error {
	to := make([]address, len(msg.To))
	for i, addr := range msg.To {
		to[i] = address{Email: addr}
	}

	// SendGrid requires text/plain before text/html.
	req := mailRequest{
		Personalizations: []personalization{{To: to}},
		From:             address{Email: msg.FromEmail, Name: msg.FromName},
		Subject:          msg.Subject,
		Content: []content{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	b, _ := io.ReadAll(resp.Body)
	var out errorResponse
	_ = json.Unmarshal(b, &out)
	if len(out.Errors) > 0 && out.Errors[0].Message != "" {
		return errors.New("sendgrid: " + out.Errors[0].Message)
	}
	return errors.New("sendgrid: send failed with status " + resp.Status)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
