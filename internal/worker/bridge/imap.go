package bridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

const imapTimeout = time.Minute

type imapMailbox struct {
	c      *client.Client
	config IMAPConfig

	log *zap.Logger
}

func dialIMAP(ctx context.Context, config IMAPConfig, log *zap.Logger) (Mailbox, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	log = log.With(zap.String("address", addr))
	log.Debug("dialing imap server")

	var c *client.Client
	var err error
	if config.TLS {
		c, err = client.DialTLS(addr, &tls.Config{ServerName: config.Host})
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c.Timeout = imapTimeout

	if err := c.Login(config.Username, config.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("login: %w", err)
	}

	log.Debug("logged in")

	return &imapMailbox{
		c:      c,
		config: config,
		log:    log,
	}, nil
}

func (m *imapMailbox) Unseen(ctx context.Context) ([]Message, error) {
	if _, err := m.c.Select(m.config.Mailbox, false); err != nil {
		return nil, fmt.Errorf("select %s: %w", m.config.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, ch)
	}()

	msgs := make([]Message, 0, len(uids))

	// the channel must be drained until the fetch closes it
	for msg := range ch {
		r := msg.GetBody(section)
		if r == nil {
			m.log.Warn("message without body", zap.Uint32("uid", msg.Uid))
			continue
		}

		body, err := io.ReadAll(r)
		if err != nil {
			m.log.Error("failed to read message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}

		msgs = append(msgs, Message{UID: msg.Uid, Body: body})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return msgs, nil
}

func (m *imapMailbox) MarkForwarded(ctx context.Context, uids []uint32, delete bool) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	flags := []interface{}{imap.SeenFlag}
	if delete {
		flags = append(flags, imap.DeletedFlag)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.c.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("store flags: %w", err)
	}

	if !delete {
		return nil
	}

	// EXPUNGE is mailbox wide, see Config.DeleteAfterForward
	if err := m.c.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}

	return nil
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}
