package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/internal/transport"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

const (
	defaultTimeout = 30 * time.Second
	sendDelayMs    = 1000
)

// Client sends text through the Evolution API. Messages to one address
// are spaced by at least the configured minimum interval.
type Client struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
	pacer      *transport.Pacer
}

func NewClient(baseURL, apiKey, instance string, minInterval time.Duration) *Client {
	logger.Info("Initializing Evolution client", "base_url", baseURL, "instance", instance)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		instance:   instance,
		httpClient: &http.Client{Timeout: defaultTimeout},
		pacer:      transport.NewPacer(minInterval),
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

// SendText posts text to a group or user address.
func (c *Client) SendText(ctx context.Context, address, text string) (err error) {
	defer func() { metrics.MessageSent("evolution", err) }()

	if err := c.pacer.Wait(ctx, address); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "send rate wait")
	}

	body, err := json.Marshal(sendTextRequest{Number: address, Text: text, Delay: sendDelayMs})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "encode send request")
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
	if err := c.do(ctx, http.MethodPost, url, body, nil); err != nil {
		return err
	}
	logger.Debug("Message sent", "address", address, "chars", len(text))
	return nil
}

// ConnectionState returns the WhatsApp connection state of the instance,
// such as "open" or "close".
func (c *Client) ConnectionState(ctx context.Context) (string, error) {
	var resp struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	url := fmt.Sprintf("%s/instance/connectionState/%s", c.baseURL, c.instance)
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return "", err
	}
	if resp.Instance.State != "" {
		return resp.Instance.State, nil
	}
	return resp.State, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "build evolution request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "evolution request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.New(errors.ErrCodeTransport,
			fmt.Sprintf("evolution returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "decode evolution response")
	}
	return nil
}
