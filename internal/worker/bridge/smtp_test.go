package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingBackend accepts every message and records the envelopes.
type recordingBackend struct {
	mu       sync.Mutex
	sessions int
	logins   []string
	from     []string
	rcpt     []string
	data     []string
}

func (b *recordingBackend) Login(_ *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	if password != "secret" {
		return nil, errors.New("invalid credentials")
	}

	b.mu.Lock()
	b.logins = append(b.logins, username)
	b.mu.Unlock()

	return b.newSession(), nil
}

func (b *recordingBackend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return b.newSession(), nil
}

func (b *recordingBackend) newSession() smtp.Session {
	b.mu.Lock()
	b.sessions++
	b.mu.Unlock()

	return &recordingSession{backend: b}
}

type recordingSession struct {
	backend *recordingBackend
}

func (s *recordingSession) Mail(from string, _ smtp.MailOptions) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.from = append(s.backend.from, from)
	return nil
}

func (s *recordingSession) Rcpt(to string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.rcpt = append(s.backend.rcpt, to)
	return nil
}

func (s *recordingSession) Data(r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.data = append(s.backend.data, string(body))
	return nil
}

func (s *recordingSession) Reset() {}

func (s *recordingSession) Logout() error {
	return nil
}

func newSMTPServer(t *testing.T) (*recordingBackend, SMTPConfig) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	backend := &recordingBackend{}

	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true

	go server.Serve(l)

	t.Cleanup(func() { server.Close() })

	config := SMTPConfig{
		Host: "127.0.0.1",
		Port: l.Addr().(*net.TCPAddr).Port,
		From: "bridge@example.com",
		To:   []string{"a@example.com", "b@example.com"},
	}

	return backend, config
}

func TestSMTPSender_Send_DeliversToAllRecipients(t *testing.T) {
	backend, config := newSMTPServer(t)

	sender, err := newSMTPSender(config, 1, zap.NewNop())
	require.NoError(t, err)
	defer sender.Close()

	err = sender.Send(context.Background(), Message{UID: 1, Body: []byte("Subject: hi\r\n\r\nhello\r\n")})
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()

	assert.Equal(t, []string{"bridge@example.com"}, backend.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, backend.rcpt)
	require.Len(t, backend.data, 1)
	assert.Contains(t, backend.data[0], "hello")
}

func TestSMTPSender_Send_Authenticates(t *testing.T) {
	backend, config := newSMTPServer(t)

	config.Username = "bridge"
	config.Password = "secret"

	sender, err := newSMTPSender(config, 1, zap.NewNop())
	require.NoError(t, err)
	defer sender.Close()

	err = sender.Send(context.Background(), Message{UID: 1, Body: []byte("hello\r\n")})
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()

	assert.Equal(t, []string{"bridge"}, backend.logins)
	assert.Len(t, backend.data, 1)
}

func TestSMTPSender_Send_FailsWithWrongCredentials(t *testing.T) {
	backend, config := newSMTPServer(t)

	config.Username = "bridge"
	config.Password = "wrong"

	sender, err := newSMTPSender(config, 1, zap.NewNop())
	require.NoError(t, err)
	defer sender.Close()

	err = sender.Send(context.Background(), Message{UID: 1, Body: []byte("hello\r\n")})
	assert.Error(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()

	assert.Empty(t, backend.data)
}

func TestSMTPSender_Send_ReusesPooledConnection(t *testing.T) {
	backend, config := newSMTPServer(t)

	sender, err := newSMTPSender(config, 1, zap.NewNop())
	require.NoError(t, err)
	defer sender.Close()

	for i := 0; i < 3; i++ {
		err := sender.Send(context.Background(), Message{UID: uint32(i), Body: []byte("msg " + strconv.Itoa(i) + "\r\n")})
		require.NoError(t, err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()

	assert.Equal(t, 1, backend.sessions)
	assert.Len(t, backend.data, 3)
}

func TestSMTPSender_Send_FailsWhenServerUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	sender, err := newSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "a@b", To: []string{"c@d"}}, 1, zap.NewNop())
	require.NoError(t, err)
	defer sender.Close()

	err = sender.Send(context.Background(), Message{UID: 1, Body: []byte("x")})
	assert.Error(t, err)
}
