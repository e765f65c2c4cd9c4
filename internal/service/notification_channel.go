package service

import (
	"context"
	"errors"
	"fmt"

	"cadenza/backend/internal/model"
)

// ErrRecipientUnreachable 接收人未绑定该渠道或已关闭该渠道
var ErrRecipientUnreachable = errors.New("接收人在该渠道不可达")

// Delivery 一次外部推送
type Delivery struct {
	User    *model.User
	Pref    *model.NotificationPreference
	Title   string
	Content string
}

// Channel 外部推送渠道；站内信由通知服务自身落库，不属于渠道
type Channel interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// ── Telegram ──

type telegramSender interface {
	Send(chatID int64, text string) error
}

type telegramChannel struct {
	sender telegramSender
}

// NewTelegramChannel 基于 Telegram Bot 的推送渠道
func NewTelegramChannel(sender telegramSender) Channel {
	return &telegramChannel{sender: sender}
}

func (c *telegramChannel) Name() string { return "telegram" }

func (c *telegramChannel) Deliver(ctx context.Context, d Delivery) error {
	if d.User.TelegramChatID == nil || (d.Pref != nil && !d.Pref.TelegramEnabled) {
		return ErrRecipientUnreachable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("%s\n\n%s", d.Title, d.Content)
	return c.sender.Send(*d.User.TelegramChatID, text)
}
