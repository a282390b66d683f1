// Package sms delivers invitation texts to phones that have no account yet.
package sms

import (
	"context"
	"errors"
	"strings"

	"github.com/HammerMeetNail/friendsync/internal/config"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

var ErrSendFailed = errors.New("sms send failed")

type Sender interface {
	SendInvite(ctx context.Context, phone models.ContactKey, inviterName string) error
}

// New picks the provider named in cfg. Missing credentials fall back to the console
// sender so local setups work without an SMS account.
func New(cfg *config.SMSConfig, logger *logging.Logger) (Sender, error) {
	if logger == nil {
		logger = logging.Default
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider != "aliyun" {
		return NewConsoleSender(logger), nil
	}
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" {
		logger.Warn("SMS credentials missing, using console sender")
		return NewConsoleSender(logger), nil
	}
	return NewAliyunSender(AliyunConfig{
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		Endpoint:        cfg.Endpoint,
		SignName:        cfg.SignName,
		TemplateCode:    cfg.TemplateCode,
	}, logger)
}

// ConsoleSender logs invites instead of sending them.
type ConsoleSender struct {
	logger *logging.Logger
}

func NewConsoleSender(logger *logging.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) SendInvite(ctx context.Context, phone models.ContactKey, inviterName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("SMS invite (console)", map[string]interface{}{
		"phone":   string(phone),
		"inviter": inviterName,
	})
	return nil
}
