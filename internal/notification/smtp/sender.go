// Package smtp delivers notification messages as plain-text email.
package smtp

import (
	"context"
	"fmt"
	"net"
	netsmtp "net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tenant-access-control/internal/notification"
)

// Config holds SMTP server settings and the frontend base URL used in links.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

// SendFunc matches net/smtp.SendMail.
type SendFunc func(addr string, a netsmtp.Auth, from string, to []string, msg []byte) error

// Sender implements notification.Notifier by sending mail through an SMTP relay.
type Sender struct {
	cfg  Config
	send SendFunc
}

// NewSender returns a Sender for cfg. Port defaults to 587.
func NewSender(cfg Config) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Sender{cfg: cfg, send: netsmtp.SendMail}
}

// Notify renders msg and sends it. Does not log the token.
func (s *Sender) Notify(ctx context.Context, msg notification.Message) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp: host not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := Render(msg, s.cfg.FrontendURL)
	if err != nil {
		return err
	}
	var auth netsmtp.Auth
	if s.cfg.Username != "" {
		auth = netsmtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	raw := compose(s.cfg.From, msg.Recipient, subject, body)
	if err := s.send(addr, auth, s.cfg.From, []string{msg.Recipient}, raw); err != nil {
		return fmt.Errorf("smtp: send %s: %w", msg.Kind, err)
	}
	return nil
}

// Render returns the subject and body for msg with links rooted at frontendURL.
func Render(msg notification.Message, frontendURL string) (subject, body string, err error) {
	base := strings.TrimRight(frontendURL, "/")
	q := url.Values{"token": {msg.Token}}.Encode()
	switch msg.Kind {
	case notification.KindVerification:
		link := base + "/verify?" + q
		return "Verify your email",
			"Please verify your email by clicking the link below:\n\n" + link + "\n", nil
	case notification.KindOrgInvite:
		link := base + "/invite/organization?" + q
		return "You have been invited to an organization",
			inviteBody("an organization", msg.Context["organization_name"], msg.Context["role"], link), nil
	case notification.KindWebsiteInvite:
		link := base + "/invite/website?" + q
		return "You have been invited to a website",
			inviteBody("a website", msg.Context["website_name"], msg.Context["role"], link), nil
	}
	return "", "", fmt.Errorf("smtp: unknown message kind %q", msg.Kind)
}

func inviteBody(what, name, role, link string) string {
	var b strings.Builder
	b.WriteString("You have been invited to join ")
	if name != "" {
		b.WriteString(name)
	} else {
		b.WriteString(what)
	}
	if role != "" {
		b.WriteString(" as " + role)
	}
	b.WriteString(".\n\nAccept the invitation here:\n\n")
	b.WriteString(link)
	b.WriteString("\n\nThe link expires shortly. Sign up first if you do not have an account.\n")
	return b.String()
}

func compose(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
