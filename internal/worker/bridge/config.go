package bridge

import "time"

type IMAPConfig struct {
	// Host is the IMAP server host
	Host string `conf:"host"`

	// Port is the IMAP server port
	Port int `conf:"port"`

	// TLS enables implicit TLS (IMAPS)
	TLS bool `conf:"tls"`

	Username string `conf:"username"`
	Password string `conf:"password"`

	// Mailbox is the mailbox polled for unseen messages
	Mailbox string `conf:"mailbox"`
}

type SMTPConfig struct {
	// Host is the SMTP server host
	Host string `conf:"host"`

	// Port is the SMTP server port
	Port int `conf:"port"`

	// StartTLS upgrades the connection if the server supports it
	StartTLS bool `conf:"starttls"`

	Username string `conf:"username"`
	Password string `conf:"password"`

	// From is the envelope sender of forwarded messages
	From string `conf:"from"`

	// To are the envelope recipients of forwarded messages
	To []string `conf:"to"`
}

type Config struct {
	IMAP IMAPConfig `conf:"imap"`
	SMTP SMTPConfig `conf:"smtp"`

	// PollInterval is the pause between two mailbox polls
	PollInterval time.Duration `conf:"poll_interval"`

	// DeleteAfterForward deletes and expunges forwarded messages
	// instead of only flagging them as seen. The expunge applies to the
	// whole mailbox, so messages flagged \Deleted by other clients are
	// removed as well.
	DeleteAfterForward bool `conf:"delete_after_forward"`

	// MaxConns is the maximum number of pooled SMTP connections
	MaxConns int `conf:"max_conns"`
}

var DefaultConfig = Config{
	IMAP: IMAPConfig{
		Port:    993,
		TLS:     true,
		Mailbox: "INBOX",
	},
	SMTP: SMTPConfig{
		Port:     587,
		StartTLS: true,
	},
	PollInterval: time.Minute,
	MaxConns:     1,
}
