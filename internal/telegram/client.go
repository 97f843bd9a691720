// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/pricepilot/internal/models"
)

// StatusFunc reports a short service status for the /status command.
type StatusFunc func(ctx context.Context) string

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	status         StatusFunc
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SetStatusFunc installs the handler behind /status.
func (c *Client) SetStatusFunc(f StatusFunc) {
	c.status = f
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "status":
		if c.status == nil {
			return
		}
		text = c.status(ctx)
	default:
		return
	}
	c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)) //nolint:errcheck
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a repricing error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Repricing error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Repricing recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendReport sends the digest of a repricing cycle.
func (c *Client) SendReport(r models.CycleReport) error {
	return c.sendMarkdownV2(formatReport(r))
}

// SendAlerts sends warning and critical alerts; info alerts are only stored.
func (c *Client) SendAlerts(alerts []models.Alert) error {
	text := formatAlerts(alerts)
	if text == "" {
		return nil
	}
	return c.sendMarkdownV2(text)
}

func formatReport(r models.CycleReport) string {
	var b strings.Builder
	b.WriteString("💲 *Repricing Digest*\n\n")
	fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(r.StartedAt.UTC().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(&b, "Evaluated: %d \\| Approved: %d \\| Rejected: %d \\| Applied: %d\n",
		r.ProductsEvaluated, r.Approved, r.Rejected, r.Applied)
	fmt.Fprintf(&b, "Avg revenue: %s \\| Avg profit: %s\n",
		escapeMarkdownV2(signedPct(r.AvgRevenueChange)), escapeMarkdownV2(signedPct(r.AvgProfitChange)))
	if r.Anomalies > 0 || r.AlertsRaised > 0 {
		fmt.Fprintf(&b, "⚠️ Anomalies: %d \\| Alerts: %d\n", r.Anomalies, r.AlertsRaised)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, "❗ Failed: %d\n", r.Failed)
	}

	if len(r.Top) > 0 {
		b.WriteString("\n*Top opportunities*\n")
	}
	for i, rec := range r.Top {
		res := rec.Result
		emoji := "📈"
		if res.OptimalPrice < res.CurrentPrice {
			emoji = "📉"
		}
		mark := "✅"
		if !rec.Approved {
			mark = "⛔"
		}
		fmt.Fprintf(&b, "%d\\. %s %s %s → %s \\(%s revenue, conf %s\\) %s\n",
			i+1,
			emoji,
			escapeMarkdownV2(res.ProductID),
			escapeMarkdownV2(money(res.CurrentPrice)),
			escapeMarkdownV2(money(res.OptimalPrice)),
			escapeMarkdownV2(signedPct(res.ExpectedRevenueChange)),
			escapeMarkdownV2(decimal.NewFromFloat(res.ConfidenceScore).StringFixed(2)),
			mark,
		)
	}
	return b.String()
}

func formatAlerts(alerts []models.Alert) string {
	var b strings.Builder
	for _, a := range alerts {
		var emoji string
		switch a.Severity {
		case models.SeverityCritical:
			emoji = "🔴"
		case models.SeverityWarning:
			emoji = "🟠"
		default:
			continue
		}
		if b.Len() == 0 {
			b.WriteString("🚨 *Pricing Alerts*\n\n")
		}
		fmt.Fprintf(&b, "%s *%s*\n%s\n\n", emoji, escapeMarkdownV2(a.Title), escapeMarkdownV2(a.Message))
	}
	return b.String()
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func signedPct(v float64) string {
	d := decimal.NewFromFloat(v).Round(1)
	if d.IsPositive() {
		return "+" + d.StringFixed(1) + "%"
	}
	return d.StringFixed(1) + "%"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
