package vimagram

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vimalinx/vimagram/internal/channels"
	"github.com/vimalinx/vimagram/internal/config"
)

// SendRequest is the outbound wire body for the bridge /send endpoint.
type SendRequest struct {
	ChatID    string `json:"chatId"`
	Text      string `json:"text"`
	ReplyToID string `json:"replyToId,omitempty"`
	AccountID string `json:"accountId"`
}

// Client is the outbound HTTP transport to the Vimagram bridge: JSON POST to
// {baseUrl}/send with bearer auth and optional HMAC signature headers.
type Client struct {
	http    *resty.Client
	signing config.SigningConfig
	limiter *rate.Limiter
	nowFn   func() time.Time
}

// NewClient builds a transport client for one account. The config layer has
// already rejected missing or non-https base URLs.
func NewClient(acc *config.VimagramAccountConfig) *Client {
	rc := resty.New().
		SetBaseURL(acc.BaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if acc.Token != "" {
		rc.SetAuthToken(acc.Token)
	}

	rps := acc.SendRatePerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		http:    rc,
		signing: acc.Signing,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		nowFn:   time.Now,
	}
}

// SendMessage posts one message to the bridge. Paced by the account's send
// limiter; fails on any non-2xx response.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)

	if c.signing.Enabled {
		ts := strconv.FormatInt(c.nowFn().UnixMilli(), 10)
		nonce := uuid.NewString()
		r.SetHeader("x-test-timestamp", ts)
		r.SetHeader("x-test-nonce", nonce)
		r.SetHeader("x-test-signature", signPayload(c.signing.Secret, ts, nonce, body))
	}

	resp, err := r.Post("/send")
	if err != nil {
		return fmt.Errorf("post /send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("bridge send failed: %s: %s", resp.Status(), channels.Truncate(resp.String(), 200))
	}
	return nil
}

// signPayload computes the HMAC-SHA256 signature over timestamp, nonce, and
// body, dot-joined, hex-encoded.
func signPayload(secret, timestamp, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(nonce))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
