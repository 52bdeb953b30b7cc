package bridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"
)

type smtpSender struct {
	pool   *puddle.Pool[*smtp.Client]
	config SMTPConfig

	log *zap.Logger
}

func newSMTPSender(config SMTPConfig, maxConns int, log *zap.Logger) (Sender, error) {
	log = log.With(zap.String("smtp", config.Host))

	constructor := func(ctx context.Context) (*smtp.Client, error) {
		return dialSMTP(ctx, config)
	}

	destructor := func(c *smtp.Client) {
		if err := c.Quit(); err != nil {
			log.Debug("error closing smtp connection", zap.Error(err))
			c.Close()
		}
	}

	pool, err := puddle.NewPool(&puddle.Config[*smtp.Client]{
		Constructor: constructor,
		Destructor:  destructor,
		MaxSize:     int32(maxConns),
	})
	if err != nil {
		return nil, err
	}

	return &smtpSender{
		pool:   pool,
		config: config,
		log:    log,
	}, nil
}

func dialSMTP(ctx context.Context, config SMTPConfig) (*smtp.Client, error) {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if config.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: config.Host}); err != nil {
				c.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if config.Username != "" {
		auth := sasl.NewPlainClient("", config.Username, config.Password)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return nil, fmt.Errorf("auth: %w", err)
		}
	}

	return c, nil
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	res, err := s.acquire(ctx)
	if err != nil {
		return err
	}

	if err := deliver(res.Value(), s.config.From, s.config.To, msg.Body); err != nil {
		// the connection state is unknown after a failed transaction
		res.Destroy()
		return err
	}

	res.Release()

	return nil
}

// acquire returns a pooled connection, replacing one the server
// already closed.
func (s *smtpSender) acquire(ctx context.Context) (*puddle.Resource[*smtp.Client], error) {
	res, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := res.Value().Noop(); err == nil {
		return res, nil
	}

	s.log.Debug("stale smtp connection, reconnecting")
	res.Destroy()

	return s.pool.Acquire(ctx)
}

func deliver(c *smtp.Client, from string, to []string, body []byte) error {
	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("write: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	return nil
}

func (s *smtpSender) Close() {
	s.pool.Close()
}
