package webhook

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	domsvc "SigPulse/internal/domain/service"
	xhttp "SigPulse/pkg/http"
	applogger "SigPulse/pkg/logger"
)

// Client delivers alerts to a generic webhook endpoint, shaped for iOS
// Shortcuts automations: a plain text message plus routing metadata.
type Client struct {
	url    string
	http   *xhttp.Client
	logger *applogger.Logger
}

// New creates a webhook alert channel.
func New(url string, httpClient *xhttp.Client, logger *applogger.Logger) *Client {
	if httpClient == nil {
		httpClient = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	return &Client{url: url, http: httpClient, logger: logger}
}

func (c *Client) Name() string { return "webhook" }

type payload struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	// left null on purpose, the receiving automation stamps it
	Timestamp *string  `json:"timestamp"`
	Price     *float64 `json:"price"`
}

// SendSignal formats and delivers one trading signal.
func (c *Client) SendSignal(ctx context.Context, a *models.SignalAssessment) error {
	message, priority, err := formatSignal(a)
	if err != nil {
		return err
	}
	p := payload{Message: message, Type: string(a.Kind), Priority: priority}
	if a.Price > 0 {
		price := a.Price
		p.Price = &price
	}
	return c.post(ctx, p)
}

// SendText delivers a plain message.
func (c *Client) SendText(ctx context.Context, message string) error {
	return c.post(ctx, payload{Message: message, Type: "info", Priority: "normal"})
}

// Health posts a probe payload the automation can ignore.
func (c *Client) Health(ctx context.Context) error {
	return c.post(ctx, payload{Message: "connection test", Type: "test", Priority: "low"})
}

func (c *Client) post(ctx context.Context, p payload) error {
	if c.url == "" {
		return fmt.Errorf("webhook not configured")
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    p,
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("webhook delivered", applogger.String("type", p.Type))
	}
	return nil
}

// formatSignal renders the plain text twin of the Telegram message.
func formatSignal(a *models.SignalAssessment) (string, string, error) {
	if a == nil {
		return "", "", fmt.Errorf("nil assessment")
	}

	var header, priority string
	direction := strings.ToUpper(string(a.Direction))
	switch a.Kind {
	case models.SignalConfirmed:
		emoji := "🚀"
		if a.Direction == models.DirectionShort {
			emoji = "📉"
		}
		header = fmt.Sprintf("%s %s SIGNAL: %s", emoji, direction, a.Symbol)
		priority = "high"
	case models.SignalBase:
		header = fmt.Sprintf("⚠️ %s ALERT: %s", direction, a.Symbol)
		priority = "normal"
	default:
		return "", "", fmt.Errorf("signal type %q is not alertable", a.Kind)
	}

	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "\nStrength: %.1f%%", a.Strength*100)
	fmt.Fprintf(&b, "\nConfidence: %d/5", a.Confidence)
	if a.Price > 0 {
		fmt.Fprintf(&b, "\nPrice: $%.4f", a.Price)
	}
	if a.Crossover.FastEMA > 0 && a.Crossover.SlowEMA > 0 {
		fmt.Fprintf(&b, "\nEMA 9: $%.4f", a.Crossover.FastEMA)
		fmt.Fprintf(&b, "\nEMA 20: $%.4f", a.Crossover.SlowEMA)
		sep := math.Abs(a.Crossover.FastEMA-a.Crossover.SlowEMA) / a.Crossover.SlowEMA * 100
		fmt.Fprintf(&b, "\nEMA Separation: %.2f%%", sep)
	}

	var confirmations []string
	if a.Structure.Detected {
		info := "BOS"
		if a.Structure.VolumeConfirmed {
			info += " (Volume Confirmed)"
		}
		confirmations = append(confirmations, info)
	}
	if a.Character.Detected {
		info := "CHOCH"
		if a.Character.VolumeConfirmed {
			info += " (Volume Confirmed)"
		}
		confirmations = append(confirmations, info)
	}
	if len(confirmations) > 0 {
		fmt.Fprintf(&b, "\nConfirmations: %s", strings.Join(confirmations, " | "))
	}

	return b.String(), priority, nil
}

var _ domsvc.AlertChannel = (*Client)(nil)
