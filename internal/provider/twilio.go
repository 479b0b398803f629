// Package provider implements the outbound client for the SMS/RCS messaging
// provider (Twilio's Programmable Messaging REST API).
//
// The client is an explicitly constructed value; the process bootstrap owns
// its lifecycle and injects it into the send service. It speaks the
// provider's form-encoded REST dialect directly over net/http.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotConfigured is returned by sends when credentials are missing.
var ErrNotConfigured = errors.New("provider: credentials not configured")

// Config holds everything needed to talk to the provider.
type Config struct {
	AccountSID        string
	AuthToken         string
	DefaultFrom       string
	BaseURL           string
	Timeout           time.Duration
	StatusCallbackURL string
}

// SMSRequest is a plain text (optionally MMS) send.
type SMSRequest struct {
	To       string
	Body     string
	From     string
	MediaURL []string
}

// RCSRequest is a rich send backed by a provider content template.
type RCSRequest struct {
	To               string
	ContentSID       string
	ContentVariables map[string]string
	From             string
}

// MessageResponse is the provider's view of a message.
type MessageResponse struct {
	SID          string     `json:"sid"`
	Status       string     `json:"status"`
	To           string     `json:"to"`
	From         string     `json:"from"`
	Body         string     `json:"body"`
	DateCreated  time.Time  `json:"date_created"`
	DateSent     *time.Time `json:"date_sent,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// APIError is the provider's JSON error envelope.
type APIError struct {
	Status   int    `json:"status"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider: %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Client is a Twilio REST client. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs a Client with a dedicated http.Client honoring
// cfg.Timeout.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// DefaultFrom returns the configured default sender.
func (c *Client) DefaultFrom() string { return c.cfg.DefaultFrom }

// SendSMS places a text send and returns the provider's acceptance record.
func (c *Client) SendSMS(ctx context.Context, r SMSRequest) (*MessageResponse, error) {
	form := url.Values{}
	form.Set("To", r.To)
	form.Set("From", c.from(r.From))
	form.Set("Body", r.Body)
	for _, m := range r.MediaURL {
		form.Add("MediaUrl", m)
	}
	c.withCallback(form)

	out, err := c.do(ctx, http.MethodPost, c.messagesURL(), form)
	if err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}
	return out, nil
}

// SendRCS places a content-template send. Rich sends carry no body, so the
// response body is reported as "RCS Message".
func (c *Client) SendRCS(ctx context.Context, r RCSRequest) (*MessageResponse, error) {
	form := url.Values{}
	form.Set("To", r.To)
	form.Set("From", c.from(r.From))
	form.Set("ContentSid", r.ContentSID)
	if len(r.ContentVariables) > 0 {
		b, err := json.Marshal(r.ContentVariables)
		if err != nil {
			return nil, fmt.Errorf("send rcs: encode content variables: %w", err)
		}
		form.Set("ContentVariables", string(b))
	}
	c.withCallback(form)

	out, err := c.do(ctx, http.MethodPost, c.messagesURL(), form)
	if err != nil {
		return nil, fmt.Errorf("send rcs: %w", err)
	}
	out.Body = "RCS Message"
	return out, nil
}

// FetchMessage returns the provider's current record for sid.
func (c *Client) FetchMessage(ctx context.Context, sid string) (*MessageResponse, error) {
	u := c.cfg.BaseURL + "/2010-04-01/Accounts/" + url.PathEscape(c.cfg.AccountSID) + "/Messages/" + url.PathEscape(sid) + ".json"
	out, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return out, nil
}

func (c *Client) from(f string) string {
	if f != "" {
		return f
	}
	return c.cfg.DefaultFrom
}

func (c *Client) withCallback(form url.Values) {
	if c.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", c.cfg.StatusCallbackURL)
	}
}

func (c *Client) messagesURL() string {
	return c.cfg.BaseURL + "/2010-04-01/Accounts/" + url.PathEscape(c.cfg.AccountSID) + "/Messages.json"
}

// wireMessage mirrors the provider JSON where numeric and date fields do not
// decode directly into MessageResponse.
type wireMessage struct {
	SID          string          `json:"sid"`
	Status       string          `json:"status"`
	To           string          `json:"to"`
	From         string          `json:"from"`
	Body         string          `json:"body"`
	DateCreated  string          `json:"date_created"`
	DateSent     string          `json:"date_sent"`
	ErrorCode    json.RawMessage `json:"error_code"`
	ErrorMessage *string         `json:"error_message"`
}

func (c *Client) do(ctx context.Context, method, u string, form url.Values) (*MessageResponse, error) {
	if c.cfg.AccountSID == "" || c.cfg.AuthToken == "" {
		return nil, ErrNotConfigured
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.Status = resp.StatusCode
		return nil, apiErr
	}

	var wm wireMessage
	if err := json.Unmarshal(raw, &wm); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
	}
	if wm.SID == "" {
		return nil, fmt.Errorf("missing sid in response body=%q", string(raw))
	}
	return wm.toResponse(), nil
}

func (wm wireMessage) toResponse() *MessageResponse {
	out := &MessageResponse{
		SID:    wm.SID,
		Status: wm.Status,
		To:     wm.To,
		From:   wm.From,
		Body:   wm.Body,
	}
	if t, ok := parseProviderTime(wm.DateCreated); ok {
		out.DateCreated = t
	}
	if t, ok := parseProviderTime(wm.DateSent); ok {
		out.DateSent = &t
	}
	out.ErrorCode = decodeErrorCode(wm.ErrorCode)
	if wm.ErrorMessage != nil {
		out.ErrorMessage = *wm.ErrorMessage
	}
	return out
}

// parseProviderTime accepts RFC 1123 with numeric zone, the provider's date format.
func parseProviderTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// decodeErrorCode renders error_code, which may be null, a number, or a string.
func decodeErrorCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
