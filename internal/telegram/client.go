// Package telegram sends run reports via the Telegram Bot API.
// A report lists the most undervalued flats of a run with their score,
// unit price and confidence, followed by summary counts.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/flatvalue/internal/logger"
	"github.com/rewired-gh/flatvalue/internal/models"
)

// sender is the subset of *tgbotapi.BotAPI the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
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

// SendTop sends a report of the given top records and the run summary.
// Callers pick the records, typically with export.TopUndervalued.
func (c *Client) SendTop(ctx context.Context, top []models.Scored, summary models.Summary) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(top, summary))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		_, err := c.bot.Send(msg)
		if err == nil {
			logger.Info("Sent Telegram report with %d listings", len(top))
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders the report as MarkdownV2
func formatMessage(top []models.Scored, summary models.Summary) string {
	var b strings.Builder

	b.WriteString("🏠 *Undervalued Resale Flats*\n")
	if summary.DateRange != "" {
		fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(summary.DateRange))
	}
	b.WriteString("\n")

	if len(top) == 0 {
		b.WriteString("No undervalued flats found in this run\\.\n\n")
	}

	for i, r := range top {
		fmt.Fprintf(&b, "%d\\. *%s*\n", i+1, escapeMarkdownV2(r.DisplayName()))
		fmt.Fprintf(&b, "   📍 %s, %s\n", escapeMarkdownV2(r.FormattedAddress()), escapeMarkdownV2(r.Town))
		fmt.Fprintf(&b, "   📉 Score: *%s* \\(%s confidence\\)\n",
			escapeMarkdownV2(fmt.Sprintf("%+.1f", r.Score)), escapeMarkdownV2(string(r.Confidence)))
		fmt.Fprintf(&b, "   💰 %s at %s/sqft vs median %s\n",
			escapeMarkdownV2("S$"+humanize.Comma(int64(r.Price))),
			escapeMarkdownV2("S$"+humanize.FormatFloat("#,###.##", r.UnitPrice)),
			escapeMarkdownV2("S$"+humanize.FormatFloat("#,###.##", r.CohortMedianPrice)))
		fmt.Fprintf(&b, "   👥 %s comparables\n\n", escapeMarkdownV2(humanize.Comma(int64(r.ComparableCount))))
	}

	stats := summary.UndervaluationStats
	fmt.Fprintf(&b, "📊 Scored %s, excluded %s\n",
		escapeMarkdownV2(humanize.Comma(int64(summary.TotalTransactions))),
		escapeMarkdownV2(humanize.Comma(int64(summary.ExcludedCount))))
	fmt.Fprintf(&b, "Undervalued %d · Fair %d · Overvalued %d\n",
		stats.UndervaluedCount, stats.FairValueCount, stats.OvervaluedCount)

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
