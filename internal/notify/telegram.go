package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/pkg/clients"
	"go.uber.org/zap"
)

const (
	maxRetries    = 3
	retryInterval = time.Second * 1

	DefaultTelegramAPI = "https://api.telegram.org"
)

var ErrUnexpectedStatus = errors.New("unexpected status code")

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramError struct {
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// TelegramSink posts withdrawal requests to the operator chat.
type TelegramSink struct {
	url           string
	chatID        string
	client        clients.HTTPClientI
	retryInterval time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewTelegramSink(client clients.HTTPClientI, apiURL, token, chatID string) *TelegramSink {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &TelegramSink{
		url:           apiURL + "/bot" + token + "/sendMessage",
		chatID:        chatID,
		client:        client,
		retryInterval: retryInterval,
		sleep:         sleepCtx,
	}
}

func (s *TelegramSink) Name() string {
	return "telegram"
}

func (s *TelegramSink) Send(ctx context.Context, event Event) error {
	if event.Type != domain.EventWithdrawalRequested {
		return nil
	}
	return s.SendText(ctx, formatWithdrawal(event))
}

func (s *TelegramSink) SendText(ctx context.Context, text string) error {
	payload, err := json.Marshal(telegramMessage{ChatID: s.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	headers := http.Header{"Content-Type": []string{"application/json"}}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		statusCode, respBody, respHeaders, err := s.client.Post(ctx, s.url, headers, payload)
		if err != nil {
			if attempt < maxRetries {
				if err := s.sleep(ctx, s.retryInterval*time.Duration(attempt)); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("failed to send message after %d retries: %w", maxRetries, err)
		}

		switch {
		case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
			return nil
		case statusCode == http.StatusTooManyRequests:
			wait := s.retryAfter(respHeaders, respBody, attempt)
			zap.L().Warn("Rate limit detected, retrying",
				zap.String("sink", s.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("retryAfter", wait))
			if attempt < maxRetries {
				if err := s.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("rate limited after %d retries: %w", maxRetries, ErrUnexpectedStatus)
		case statusCode >= http.StatusInternalServerError:
			zap.L().Warn("Telegram unavailable, retrying", zap.Int("status", statusCode), zap.Int("attempt", attempt))
			if attempt < maxRetries {
				if err := s.sleep(ctx, s.retryInterval*time.Duration(attempt)); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("status %d after %d retries: %w", statusCode, maxRetries, ErrUnexpectedStatus)
		default:
			zap.L().Error("Unexpected status code", zap.Int("status", statusCode), zap.ByteString("body", respBody))
			return fmt.Errorf("status %d: %w", statusCode, ErrUnexpectedStatus)
		}
	}
	return nil
}

// retryAfter prefers the Retry-After header, then the retry_after field
// Telegram puts into 429 bodies, then a linear backoff.
func (s *TelegramSink) retryAfter(headers http.Header, body []byte, attempt int) time.Duration {
	if v := headers.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	var tgErr telegramError
	if json.Unmarshal(body, &tgErr) == nil && tgErr.Parameters.RetryAfter > 0 {
		return time.Duration(tgErr.Parameters.RetryAfter) * time.Second
	}
	return s.retryInterval * time.Duration(attempt)
}

func formatWithdrawal(event Event) string {
	return fmt.Sprintf("Withdrawal request #%d\naccount: %d\namount: %s\nsystem: %s\nto: %s",
		event.EntryID, event.AccountID, event.Amount.StringFixed(2), event.PaymentSystem, event.ToAccount)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
