// Package svitlobot talks to the SvitloBot public API. The only call is the
// channel liveness ping; it is best-effort by contract, the caller logs
// failures and moves on.
package svitlobot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.svitlobot.in.ua"

const requestTimeout = 5 * time.Second

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// ChannelPing signals channel liveness. The response body is ignored; a
// non-2xx status is an error for the caller to log, never to retry.
func (c *Client) ChannelPing(ctx context.Context, channelKey string) error {
	if channelKey == "" {
		return nil
	}

	pingURL := fmt.Sprintf("%s/channelPing?channel_key=%s", c.BaseURL, url.QueryEscape(channelKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build channelPing request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("channelPing request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("channelPing failed: HTTP %d", resp.StatusCode)
	}

	log.Debug().Int("status", resp.StatusCode).Msg("SvitloBot channel ping sent")

	return nil
}
