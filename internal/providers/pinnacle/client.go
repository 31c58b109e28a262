// Package pinnacle is the HTTP client for the WhatsApp delivery vendor.
package pinnacle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	APIKey   string
	WaNumber string
	HTTP     *http.Client
	BaseURL  string
}

type SendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type textRequest struct {
	WaNumber string `json:"waNumber"`
	Mobile   string `json:"mobile"`
	Text     string `json:"text"`
	Type     string `json:"type"`
}

type templateRequest struct {
	WaNumber string `json:"waNumber"`
	Mobile   string `json:"mobile"`
	Type     string `json:"type"`
	Template string `json:"template"`
	Header   string `json:"header,omitempty"`
	Footer   string `json:"footer,omitempty"`
}

type mediaRequest struct {
	WaNumber string `json:"waNumber"`
	Mobile   string `json:"mobile"`
	Type     string `json:"type"`
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption,omitempty"`
}

// SendText delivers a free-form session message. The vendor rejects these
// outside the 24-hour window; callers gate on the window first.
func (c *Client) SendText(ctx context.Context, mobile, text string) (SendResponse, int, []byte, error) {
	return c.post(ctx, "/v1/wa/text", textRequest{
		WaNumber: c.WaNumber, Mobile: mobile, Text: text, Type: "text",
	})
}

func (c *Client) SendTemplate(ctx context.Context, mobile, body, header, footer string) (SendResponse, int, []byte, error) {
	return c.post(ctx, "/v1/wa/template", templateRequest{
		WaNumber: c.WaNumber, Mobile: mobile, Type: "template",
		Template: body, Header: header, Footer: footer,
	})
}

func (c *Client) SendMedia(ctx context.Context, mobile, mediaURL, kind, caption string) (SendResponse, int, []byte, error) {
	return c.post(ctx, "/v1/wa/media", mediaRequest{
		WaNumber: c.WaNumber, Mobile: mobile, Type: kind,
		MediaURL: mediaURL, Caption: caption,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) (SendResponse, int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return out, resp.StatusCode, b, errors.New(out.Error)
		}
		return out, resp.StatusCode, b, errors.New("vendor send failed")
	}
	if out.MessageID == "" {
		return out, resp.StatusCode, b, errors.New("vendor response missing messageId")
	}
	return out, resp.StatusCode, b, nil
}

// Retry decision for transient errors
func ShouldRetry(err error, httpStatus int) bool {
	if httpStatus == 429 || httpStatus == 408 {
		return true
	}
	if httpStatus >= 500 && httpStatus <= 599 {
		return true
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return true
		}
	}
	return false
}

func Backoff(attempt int) time.Duration {
	// 200ms, 600ms, 1400ms approx (with small jitter)
	base := []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}
	if attempt <= 0 {
		return base[0]
	}
	if attempt >= len(base) {
		return base[len(base)-1]
	}
	return base[attempt]
}
