// Package email は確認メール・パスワード再設定メールの送信を提供する。
// 送信失敗の扱いは呼び出し側の責務: 登録フローでは致命的でなく、
// 再送信フローではNOTIFICATION_FAILEDとして呼び出し元へ伝搬される。
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Config はSMTP送信の設定。
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	// BaseURL は確認リンク・再設定リンクの生成に使用する。
	BaseURL string
	// Timeout はSMTPサーバーへの接続と送信全体の上限時間。
	Timeout time.Duration
}

// Service はSMTP経由のメール送信サービス。
type Service struct {
	config Config
}

// NewService はServiceを生成する。
func NewService(config Config) *Service {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Service{config: config}
}

// SendVerificationEmail はアカウント確認メールを送信する。
func (s *Service) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/api/auth/verify?token=%s", s.config.BaseURL, token)
	subject := "Vérifiez votre compte"
	body := "<p>Bonjour,</p>" +
		"<p>Merci de vous être inscrit. Cliquez sur le lien ci-dessous pour vérifier votre compte :</p>" +
		"<p><a href=\"" + link + "\">Vérifier mon compte</a></p>" +
		"<p>Si vous n'avez pas demandé cela, ignorez cet email.</p>"

	return s.send(ctx, to, subject, body)
}

// SendPasswordResetEmail はパスワード再設定メールを送信する。
func (s *Service) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.config.BaseURL, token)
	subject := "Réinitialisation de mot de passe"
	body := "<p>Bonjour,</p>" +
		"<p>Cliquez sur le lien suivant pour réinitialiser votre mot de passe :</p>" +
		"<p><a href=\"" + link + "\">Réinitialiser mon mot de passe</a></p>" +
		"<p>Ce lien est valable pendant 1 heure.</p>"

	return s.send(ctx, to, subject, body)
}

// send はSMTPサーバーへ接続してHTMLメールを1通送信する。
// net/smtpはcontextを受け取らないため、接続に明示的なタイムアウトを設定し、
// ctxの期限があればそちらを優先する。
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(s.config.Host, s.config.Port)

	timeout := s.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	// 送信全体に期限を設定する（外部連携は無制限にブロックさせない）
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("SMTP authentication failed: %w", err)
			}
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}

	msg := strings.Join([]string{
		"From: " + s.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}

	return client.Quit()
}
