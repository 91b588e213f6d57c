package notifier

import (
	"context"
	"crypto/tls"
	"fmt"

	"smart-industry/common/config"

	"github.com/wneessen/go-mail"
)

// SMTPSender 通过 SMTP 发送纯文本邮件（服务器支持时使用 STARTTLS）
type SMTPSender struct {
	cfg config.SMTPConfig

	tlsConfig *tls.Config
}

// NewSMTPSender 创建邮件发送器
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

var _ EmailSender = (*SMTPSender)(nil)

// SendEmail 发送一封邮件
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	msg, err := newMessage(s.cfg.Sender, to, subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.Send(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTLSConfig(s.tlsConfig),
		mail.WithTimeout(DefaultTimeout),
	}
	if s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Sender),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// newMessage 生成 text/plain 邮件（UTF-8，quoted-printable）
func newMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
