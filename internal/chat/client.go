// Package chat is a small Discord REST client covering role changes and
// messages.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/retry"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://discord.com/api/v10"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Config holds the connection settings for a Client.
type Config struct {
	// BaseURL defaults to the public v10 API.
	BaseURL  string
	BotToken string
	GuildID  string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client
	Policy     retry.Policy
}

// Client calls the Discord REST API with bot authentication.
type Client struct {
	baseURL    string
	token      string
	guildID    string
	httpClient *http.Client
	policy     retry.Policy
	log        *logrus.Entry
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("%w: discord bot token is required", models.ErrValidation)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.BotToken,
		guildID:    cfg.GuildID,
		httpClient: httpClient,
		policy:     cfg.Policy,
		log:        logger.Component("chat"),
	}, nil
}

// GrantRole adds roleID to a guild member. Granting a held role is a no-op
// on the server side.
func (c *Client) GrantRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID)
	return retry.Do(ctx, c.policy, "grant role", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPut, path, nil)
		return err
	})
}

// RevokeRole removes roleID from a guild member.
func (c *Client) RevokeRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID)
	return retry.Do(ctx, c.policy, "revoke role", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodDelete, path, nil)
		return err
	})
}

// SendDM opens a direct message channel with userID and posts content.
func (c *Client) SendDM(ctx context.Context, userID, content string) error {
	channelID, err := retry.DoValue(ctx, c.policy, "open dm", func(ctx context.Context) (string, error) {
		body, err := c.do(ctx, http.MethodPost, "/users/@me/channels", map[string]string{"recipient_id": userID})
		if err != nil {
			return "", err
		}
		var channel struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &channel); err != nil || channel.ID == "" {
			return "", fmt.Errorf("discord: unexpected dm channel response: %s", truncate(body))
		}
		return channel.ID, nil
	})
	if err != nil {
		return err
	}
	return c.SendChannelMessage(ctx, channelID, content)
}

// SendChannelMessage posts content to a channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) error {
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	return retry.Do(ctx, c.policy, "send message", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content})
		return err
	})
}

// do sends one request and classifies the response.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("discord: encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("discord: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "sentinel (https://github.com/alimgiray/sentinel, 1.0)")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: discord %s %s: %v", models.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: discord reading response: %v", models.ErrTransient, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
	var parsed struct {
		Message    string  `json:"message"`
		Code       int     `json:"code"`
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Message = parsed.Message
		apiErr.Code = parsed.Code
	} else {
		apiErr.Message = truncate(body)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := time.Duration(parsed.RetryAfter * float64(time.Second))
		if wait <= 0 {
			wait = retryAfterHeader(resp.Header)
		}
		c.log.WithFields(logrus.Fields{"path": path, "retry_after": wait.String()}).Warn("Discord rate limited")
		return nil, &RateLimitError{APIError: apiErr, Wait: wait}
	}
	return nil, apiErr
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
