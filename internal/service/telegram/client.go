package telegram

import (
	"context"
	"fmt"
	"time"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	xhttp "SigPulse/pkg/http"
	applogger "SigPulse/pkg/logger"
)

// Client delivers alerts to a Telegram chat through the Bot API.
type Client struct {
	apiURL string
	token  string
	chatID string
	http   *xhttp.Client
	logger *applogger.Logger
}

// New creates a Telegram alert channel.
func New(apiURL, token, chatID string, httpClient *xhttp.Client, logger *applogger.Logger) *Client {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	if httpClient == nil {
		httpClient = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	return &Client{apiURL: apiURL, token: token, chatID: chatID, http: httpClient, logger: logger}
}

func (c *Client) Name() string { return "telegram" }

// SendSignal formats and delivers one trading signal.
func (c *Client) SendSignal(ctx context.Context, a *models.SignalAssessment) error {
	text, err := FormatSignal(a)
	if err != nil {
		return err
	}
	return c.send(ctx, text)
}

// SendText delivers a plain message.
func (c *Client) SendText(ctx context.Context, message string) error {
	return c.send(ctx, message)
}

// Health checks the bot token against the getMe endpoint.
func (c *Client) Health(ctx context.Context) error {
	if c.token == "" || c.chatID == "" {
		return fmt.Errorf("telegram not configured")
	}
	var resp apiResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/bot%s/getMe", c.apiURL, c.token),
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram getMe rejected: %s", resp.Description)
	}
	return nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) send(ctx context.Context, text string) error {
	if c.token == "" || c.chatID == "" {
		return fmt.Errorf("telegram not configured")
	}
	var resp apiResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", c.apiURL, c.token),
		Body: map[string]interface{}{
			"chat_id":                  c.chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram rejected message: %s", resp.Description)
	}
	if c.logger != nil {
		c.logger.Debug("telegram message sent", applogger.Int("length", len(text)))
	}
	return nil
}

var _ domsvc.AlertChannel = (*Client)(nil)
