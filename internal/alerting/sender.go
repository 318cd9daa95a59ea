package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ErrRateLimited marks a delivery refused by the chat provider's rate limit.
var ErrRateLimited = errors.New("alert delivery rate limited")

// RateLimitError carries the backoff requested by the provider.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Sender 定义单条文本消息的推送接口。
type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramSender 通过 Telegram Bot API 推送消息。
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID string
	logger zerolog.Logger
}

// NewTelegramSender 构造 Telegram 推送器。构造时会调用 getMe 校验 token。
func NewTelegramSender(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) (*TelegramSender, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.New("telegram chat id is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/bot%s/%s"

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	return &TelegramSender{
		bot:    bot,
		chatID: chatID,
		logger: logger.With().Str("component", "alert_telegram").Logger(),
	}, nil
}

// Send 调用 sendMessage 推送文本。429 响应会转换为 *RateLimitError。
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(s.chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(s.chatID, text)
	}
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0) {
			return &RateLimitError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
		}
		return fmt.Errorf("send telegram message: %w", err)
	}

	s.logger.Info().Int("length", len(text)).Msg("告警已发送 (Telegram)")
	return nil
}

// LogSender writes alerts to the log instead of a chat. Used when no chat is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender constructs a log-only sender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, text string) error {
	s.logger.Info().Str("text", text).Msg("alert (log only)")
	return nil
}

var (
	_ Sender = (*TelegramSender)(nil)
	_ Sender = (*LogSender)(nil)
)
