// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats triggered price alerts into human-readable messages and handles
// delivery with retry logic for reliability.
//
// The client uses MarkdownV2 formatting and implements the monitor's Notifier.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/mandinetra/internal/models"
)

// sender is the part of tgbotapi.BotAPI the client uses.
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

// SendAlerts sends one message listing the triggered alerts
func (c *Client) SendAlerts(ctx context.Context, triggers []models.AlertTrigger) error {
	if len(triggers) == 0 {
		return nil
	}
	return c.send(ctx, formatAlerts("🚨 *Price Alert*", triggers))
}

// SendDigest sends a daily or weekly summary of triggered alerts
func (c *Client) SendDigest(ctx context.Context, frequency models.AlertFrequency, triggers []models.AlertTrigger) error {
	if len(triggers) == 0 {
		return nil
	}
	title := "📬 *Daily Price Alert Digest*"
	if frequency == models.FrequencyWeekly {
		title = "📬 *Weekly Price Alert Digest*"
	}
	return c.send(ctx, formatAlerts(title, triggers))
}

// send delivers text with retry
func (c *Client) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2" // Use MarkdownV2 for better escaping support

	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram send canceled: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatAlerts formats triggers into a Telegram message
func formatAlerts(title string, triggers []models.AlertTrigger) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")

	// Show detected time once at the top
	dateStr := escapeMarkdownV2(triggers[0].DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", dateStr)

	for i, t := range triggers {
		label := t.Result.Label()
		if com, ok := models.LookupCommodity(t.Alert.Commodity); ok && t.Result.DisplayLabel == "" {
			label = com.DisplayName
		}

		fmt.Fprintf(&b, "%d\\. *%s*\n", i+1, escapeMarkdownV2(label))
		fmt.Fprintf(&b, "   📍 %s, %s\n", escapeMarkdownV2(t.Result.District), escapeMarkdownV2(t.Result.Market))
		fmt.Fprintf(&b, "   💰 Predicted: *₹%s* for %s\n",
			escapeMarkdownV2(t.Result.PredictedPrice.StringFixed(2)), escapeMarkdownV2(t.Result.PredictionDate))
		fmt.Fprintf(&b, "   🎯 %s\n", escapeMarkdownV2(describeCondition(t)))
		b.WriteString("\n")
	}

	return b.String()
}

// describeCondition renders the rule that matched in plain words
func describeCondition(t models.AlertTrigger) string {
	target := t.Alert.TargetPrice.StringFixed(2)
	switch t.Alert.Condition {
	case models.ConditionBelow:
		return fmt.Sprintf("At or below ₹%s", target)
	case models.ConditionChange:
		directionEmoji := "📈"
		if t.Direction() == "decrease" {
			directionEmoji = "📉"
		}
		return fmt.Sprintf("%s Moved %s%% (threshold %s%%)", directionEmoji, t.ChangePct.Abs().StringFixed(1), t.Alert.TargetPrice.String())
	default:
		return fmt.Sprintf("At or above ₹%s", target)
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	// Note: We escape all of them with \ prefix

	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteString("\\")
		}
		b.WriteRune(char)
	}
	return b.String()
}
