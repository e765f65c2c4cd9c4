package telegram

import (
	"fmt"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Sender Telegram 消息发送封装，只发不收，不启动 Poller
type Sender struct {
	bot *tele.Bot
}

// NewSender 创建发送端；Offline 模式下不在启动时调用 getMe
func NewSender(token string, timeout time.Duration) (*Sender, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 Telegram Bot 失败: %w", err)
	}
	return &Sender{bot: bot}, nil
}

// Send 向指定会话发送纯文本消息
func (s *Sender) Send(chatID int64, text string) error {
	_, err := s.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}
