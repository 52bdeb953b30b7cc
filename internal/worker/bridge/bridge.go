package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidPollInterval = errors.New("invalid poll interval")

// Message is a raw RFC 822 message fetched from the mailbox.
type Message struct {
	UID  uint32
	Body []byte
}

// Mailbox is the source of forwarded messages.
type Mailbox interface {
	// Unseen fetches all messages not flagged as seen
	Unseen(ctx context.Context) ([]Message, error)

	// MarkForwarded flags the messages as seen, or deletes them
	MarkForwarded(ctx context.Context, uids []uint32, delete bool) error

	Close() error
}

// Sender delivers messages to their destination.
type Sender interface {
	Send(ctx context.Context, msg Message) error

	Close()
}

// Bridge polls an IMAP mailbox and forwards every unseen message
// through SMTP.
type Bridge struct {
	config Config

	dialMailbox func(context.Context, IMAPConfig, *zap.Logger) (Mailbox, error)
	newSender   func(SMTPConfig, int, *zap.Logger) (Sender, error)

	log *zap.Logger
}

func New(config Config, log *zap.Logger) (*Bridge, error) {
	return newBridge(config, dialIMAP, newSMTPSender, log)
}

func newBridge(
	config Config,
	dialMailbox func(context.Context, IMAPConfig, *zap.Logger) (Mailbox, error),
	newSender func(SMTPConfig, int, *zap.Logger) (Sender, error),
	log *zap.Logger,
) (*Bridge, error) {
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPollInterval, config.PollInterval)
	}

	if config.MaxConns < 1 {
		config.MaxConns = 1
	}

	return &Bridge{
		config:      config,
		dialMailbox: dialMailbox,
		newSender:   newSender,
		log:         log.Named("bridge"),
	}, nil
}

// Run connects to the mailbox and forwards messages until ctx is
// cancelled. Connection failures end the worker.
func (b *Bridge) Run(ctx context.Context) error {
	mailbox, err := b.dialMailbox(ctx, b.config.IMAP, b.log)
	if err != nil {
		return fmt.Errorf("failed to connect to mailbox: %w", err)
	}
	defer mailbox.Close()

	sender, err := b.newSender(b.config.SMTP, b.config.MaxConns, b.log)
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}
	defer sender.Close()

	b.log.Info("bridge connected",
		zap.String("imap", b.config.IMAP.Host),
		zap.String("mailbox", b.config.IMAP.Mailbox),
		zap.String("smtp", b.config.SMTP.Host),
	)

	ticker := time.NewTicker(b.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := b.poll(ctx, mailbox, sender); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			b.log.Info("bridge stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (b *Bridge) poll(ctx context.Context, mailbox Mailbox, sender Sender) error {
	if ctx.Err() != nil {
		return nil
	}

	msgs, err := mailbox.Unseen(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	if len(msgs) == 0 {
		b.log.Debug("no new messages")
		return nil
	}

	b.log.Info("forwarding messages", zap.Int("count", len(msgs)))

	forwarded := make([]uint32, 0, len(msgs))

	for _, msg := range msgs {
		// finish the current message only
		if ctx.Err() != nil {
			break
		}

		log := b.log.With(zap.Uint32("uid", msg.UID), zap.Int("size", len(msg.Body)))

		// a message that fails to send stays unseen and is retried
		// on the next poll
		if err := sender.Send(ctx, msg); err != nil {
			log.Error("failed to forward message", zap.Error(err))
			continue
		}

		log.Debug("message forwarded")

		forwarded = append(forwarded, msg.UID)
	}

	if len(forwarded) == 0 {
		return nil
	}

	if err := mailbox.MarkForwarded(ctx, forwarded, b.config.DeleteAfterForward); err != nil {
		return fmt.Errorf("failed to flag forwarded messages: %w", err)
	}

	b.log.Info("messages forwarded", zap.Int("count", len(forwarded)))

	return nil
}
