package alerting

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

type SMTPProvider struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	To       string `json:"to"` // comma separated
	UseTLS   bool   `json:"use_tls"`
}

func (s *SMTPProvider) Name() string {
	return "smtp"
}

func (s *SMTPProvider) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if s.From == "" {
		return fmt.Errorf("from address is required")
	}
	if len(s.recipients()) == 0 {
		return fmt.Errorf("to address is required")
	}
	return nil
}

func (s *SMTPProvider) recipients() []string {
	var out []string
	for _, r := range strings.Split(s.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (s *SMTPProvider) message(n *Notice) []byte {
	body := strings.ReplaceAll(n.Body(), "\n", "\r\n")
	return []byte(fmt.Sprintf("Subject: %s\r\nFrom: CoreSight <%s>\r\nTo: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		n.Title(), s.From, strings.Join(s.recipients(), ", "), body))
}

func (s *SMTPProvider) Send(ctx context.Context, n *Notice) error {
	addr := net.JoinHostPort(s.Host, fmt.Sprint(s.Port))

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	if s.UseTLS || s.Port == 465 {
		return s.sendTLS(ctx, addr, auth, s.message(n))
	}
	return smtp.SendMail(addr, auth, s.From, s.recipients(), s.message(n))
}

func (s *SMTPProvider) sendTLS(ctx context.Context, addr string, auth smtp.Auth, msg []byte) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range s.recipients() {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
