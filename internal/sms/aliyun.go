package sms

import (
	"context"
	"encoding/json"
	"fmt"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi20170525 "github.com/alibabacloud-go/dysmsapi-20170525/v4/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

const defaultAliyunEndpoint = "dysmsapi.aliyuncs.com"

type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
	SignName        string
	TemplateCode    string
}

// smsAPI is the part of the Dysmsapi client used here.
type smsAPI interface {
	SendSmsWithOptions(request *dysmsapi20170525.SendSmsRequest, runtime *util.RuntimeOptions) (*dysmsapi20170525.SendSmsResponse, error)
}

type AliyunSender struct {
	api          smsAPI
	signName     string
	templateCode string
	logger       *logging.Logger
}

func NewAliyunSender(cfg AliyunConfig, logger *logging.Logger) (*AliyunSender, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultAliyunEndpoint
	}
	conf := &openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
	}
	conf.Endpoint = tea.String(endpoint)
	client, err := dysmsapi20170525.NewClient(conf)
	if err != nil {
		return nil, fmt.Errorf("creating aliyun sms client: %w", err)
	}
	return newAliyunSender(client, cfg, logger), nil
}

func newAliyunSender(api smsAPI, cfg AliyunConfig, logger *logging.Logger) *AliyunSender {
	if logger == nil {
		logger = logging.Default
	}
	return &AliyunSender{
		api:          api,
		signName:     cfg.SignName,
		templateCode: cfg.TemplateCode,
		logger:       logger,
	}
}

// SendInvite sends the invite template with the inviter's name as its only parameter.
// A transport success carrying a business code other than OK is still a failure.
func (s *AliyunSender) SendInvite(ctx context.Context, phone models.ContactKey, inviterName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params, err := json.Marshal(map[string]string{"name": inviterName})
	if err != nil {
		return fmt.Errorf("%w: encoding template params: %v", ErrSendFailed, err)
	}

	req := &dysmsapi20170525.SendSmsRequest{
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(s.templateCode),
		PhoneNumbers:  tea.String(string(phone)),
		TemplateParam: tea.String(string(params)),
	}
	resp, err := s.api.SendSmsWithOptions(req, &util.RuntimeOptions{})
	if err != nil {
		s.logger.Error("Aliyun SMS request failed", map[string]interface{}{"error": err})
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if resp == nil || resp.Body == nil {
		return fmt.Errorf("%w: empty response", ErrSendFailed)
	}
	if code := tea.StringValue(resp.Body.Code); code != "OK" {
		s.logger.Warn("Aliyun SMS rejected", map[string]interface{}{
			"code":       code,
			"message":    tea.StringValue(resp.Body.Message),
			"request_id": tea.StringValue(resp.Body.RequestId),
		})
		return fmt.Errorf("%w: %s: %s", ErrSendFailed, code, tea.StringValue(resp.Body.Message))
	}

	s.logger.Info("SMS invite sent", map[string]interface{}{
		"request_id": tea.StringValue(resp.Body.RequestId),
		"biz_id":     tea.StringValue(resp.Body.BizId),
	})
	return nil
}
