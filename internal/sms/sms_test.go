package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	dysmsapi20170525 "github.com/alibabacloud-go/dysmsapi-20170525/v4/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/HammerMeetNail/friendsync/internal/config"
	"github.com/HammerMeetNail/friendsync/internal/logging"
)

type fakeSMSAPI struct {
	req  *dysmsapi20170525.SendSmsRequest
	resp *dysmsapi20170525.SendSmsResponse
	err  error
}

func (f *fakeSMSAPI) SendSmsWithOptions(request *dysmsapi20170525.SendSmsRequest, runtime *util.RuntimeOptions) (*dysmsapi20170525.SendSmsResponse, error) {
	f.req = request
	return f.resp, f.err
}

func okResponse() *dysmsapi20170525.SendSmsResponse {
	return &dysmsapi20170525.SendSmsResponse{
		Body: &dysmsapi20170525.SendSmsResponseBody{
			Code:      tea.String("OK"),
			Message:   tea.String("OK"),
			RequestId: tea.String("req-1"),
			BizId:     tea.String("biz-1"),
		},
	}
}

func quietLogger() *logging.Logger {
	return logging.New().SetOutput(&bytes.Buffer{})
}

func TestAliyunSender_SendInvite(t *testing.T) {
	api := &fakeSMSAPI{resp: okResponse()}
	sender := newAliyunSender(api, AliyunConfig{SignName: "Friends", TemplateCode: "SMS_1"}, quietLogger())

	if err := sender.SendInvite(context.Background(), "15550101", "Ada"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tea.StringValue(api.req.PhoneNumbers) != "15550101" {
		t.Fatalf("unexpected phone %q", tea.StringValue(api.req.PhoneNumbers))
	}
	if tea.StringValue(api.req.SignName) != "Friends" || tea.StringValue(api.req.TemplateCode) != "SMS_1" {
		t.Fatalf("unexpected template settings: %+v", api.req)
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(tea.StringValue(api.req.TemplateParam)), &params); err != nil {
		t.Fatalf("template params are not JSON: %v", err)
	}
	if params["name"] != "Ada" {
		t.Fatalf("expected inviter name, got %v", params)
	}
}

func TestAliyunSender_TransportError(t *testing.T) {
	api := &fakeSMSAPI{err: errors.New("dial tcp: timeout")}
	sender := newAliyunSender(api, AliyunConfig{}, quietLogger())

	err := sender.SendInvite(context.Background(), "15550101", "Ada")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestAliyunSender_BusinessError(t *testing.T) {
	resp := okResponse()
	resp.Body.Code = tea.String("isv.BUSINESS_LIMIT_CONTROL")
	resp.Body.Message = tea.String("limit")
	sender := newAliyunSender(&fakeSMSAPI{resp: resp}, AliyunConfig{}, quietLogger())

	err := sender.SendInvite(context.Background(), "15550101", "Ada")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "BUSINESS_LIMIT_CONTROL") {
		t.Fatalf("expected provider code in error, got %v", err)
	}
}

func TestAliyunSender_EmptyResponse(t *testing.T) {
	sender := newAliyunSender(&fakeSMSAPI{}, AliyunConfig{}, quietLogger())
	if err := sender.SendInvite(context.Background(), "15550101", "Ada"); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestAliyunSender_CanceledContext(t *testing.T) {
	api := &fakeSMSAPI{resp: okResponse()}
	sender := newAliyunSender(api, AliyunConfig{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sender.SendInvite(ctx, "15550101", "Ada"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if api.req != nil {
		t.Fatal("canceled send must not reach the provider")
	}
}

func TestConsoleSender_LogsInvite(t *testing.T) {
	var buf bytes.Buffer
	sender := NewConsoleSender(logging.New().SetOutput(&buf))

	if err := sender.SendInvite(context.Background(), "15550101", "Ada"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "15550101") {
		t.Fatalf("expected phone in log output, got %q", buf.String())
	}
}

func TestNew_FallsBackToConsole(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMSConfig
	}{
		{"console provider", config.SMSConfig{Provider: "console"}},
		{"empty provider", config.SMSConfig{}},
		{"aliyun without credentials", config.SMSConfig{Provider: "aliyun"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := New(&tt.cfg, quietLogger())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := sender.(*ConsoleSender); !ok {
				t.Fatalf("expected console sender, got %T", sender)
			}
		})
	}
}

func TestNew_Aliyun(t *testing.T) {
	sender, err := New(&config.SMSConfig{
		Provider:        "aliyun",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		SignName:        "Friends",
		TemplateCode:    "SMS_1",
	}, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sender.(*AliyunSender); !ok {
		t.Fatalf("expected aliyun sender, got %T", sender)
	}
}
