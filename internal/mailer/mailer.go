// Package mailer はSMTP経由のトランザクションメール送信を提供する。
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"
)

// Config はSMTPメーラーの設定。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL は確認リンクの生成に使用する公開URL。
	BaseURL string
}

// SMTPMailer はgo-mailを使用したメール送信の実装。
// 送信ごとに接続を確立する。スループットが問題になる規模ではない。
type SMTPMailer struct {
	config Config
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config Config) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// SendVerificationMail はメールアドレス確認リンクを送信する。
func (m *SMTPMailer) SendVerificationMail(ctx context.Context, toEmail, username, token string) error {
	verifyURL := fmt.Sprintf("%s/api/auth/verify-email?token=%s",
		strings.TrimRight(m.config.BaseURL, "/"), token)

	msg := mail.NewMsg()
	if err := msg.From(m.config.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject("【NoteIt】メールアドレスの確認")
	msg.SetBodyString(mail.TypeTextPlain, verificationTextBody(username, verifyURL))
	msg.AddAlternativeString(mail.TypeTextHTML, verificationHTMLBody(username, verifyURL))

	client, err := m.newClient()
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}

	slog.Info("verification mail sent", slog.String("to", toEmail))
	return nil
}

func (m *SMTPMailer) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}
	return mail.NewClient(m.config.Host, opts...)
}

func verificationTextBody(username, verifyURL string) string {
	return fmt.Sprintf(`%s さん

NoteItへのご登録ありがとうございます。
以下のリンクを開いてメールアドレスを確認してください。

%s

このリンクの有効期限は1時間です。
心当たりのない場合はこのメールを無視してください。
`, username, verifyURL)
}

func verificationHTMLBody(username, verifyURL string) string {
	safeName := html.EscapeString(username)
	safeURL := html.EscapeString(verifyURL)
	return fmt.Sprintf(`<p>%s さん</p>
<p>NoteItへのご登録ありがとうございます。<br>
以下のボタンを押してメールアドレスを確認してください。</p>
<p><a href="%s" style="display:inline-block;padding:10px 24px;background:#6366f1;color:#fff;text-decoration:none;border-radius:6px;">メールアドレスを確認する</a></p>
<p>ボタンが開けない場合は次のURLをブラウザに貼り付けてください。<br>
<a href="%s">%s</a></p>
<p>このリンクの有効期限は1時間です。<br>
心当たりのない場合はこのメールを無視してください。</p>
`, safeName, safeURL, safeURL, safeURL)
}
