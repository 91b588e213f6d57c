package notifier

import (
	"context"
	"fmt"
	"strings"

	"smart-industry/common/config"

	"github.com/go-resty/resty/v2"
)

// TwilioError Twilio API 错误响应
type TwilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// TwilioMessage 创建短信成功时的响应（只取用到的字段）
type TwilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// TwilioSender 通过 Twilio REST API 发送短信
type TwilioSender struct {
	httpClient *resty.Client
	cfg        config.TwilioConfig
}

// NewTwilioSender 创建短信发送器
// 不重试：通知语义为 at-most-once
func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &TwilioSender{
		httpClient: client,
		cfg:        cfg,
	}
}

var _ SMSSender = (*TwilioSender)(nil)

// SendSMS 发送一条短信
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	var result TwilioMessage
	var apiErr TwilioError
	path := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.cfg.AccountSID)

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.cfg.FromNumber,
			"Body": body,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to call Twilio API: %w", err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("Twilio API error: %s (code: %d, status: %d)", apiErr.Message, apiErr.Code, resp.StatusCode())
		}
		return fmt.Errorf("Twilio API error: status %d", resp.StatusCode())
	}
	return nil
}
