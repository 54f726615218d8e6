// Package remote manages shell sessions to discovered devices. At most
// one live session per device identity may exist at a time; a
// per-device exclusive lock is held for the duration of the session and
// released unconditionally, including on failure.
package remote

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/faroserrors"
)

const (
	sshPort     = "22"
	dialTimeout = 10 * time.Second
)

// Credentials authenticate shell sessions fleet-wide.
type Credentials struct {
	User     string
	Password string
}

// Validate checks that both parts are present.
func (c Credentials) Validate() error {
	if c.User == "" || c.Password == "" {
		return faroserrors.ErrCredentialsMissing
	}

	return nil
}

// Dialer opens the transport connection. Swappable for tests.
type Dialer func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Conn, error)

// Conn is the minimal session surface the fleet operations need.
type Conn interface {
	Run(cmd string) (string, error)
	Close() error
}

type sshConn struct {
	client *ssh.Client
}

func (c *sshConn) Run(cmd string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)

	return string(out), err
}

func (c *sshConn) Close() error {
	return c.client.Close()
}

func sshDial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Conn, error) {
	d := net.Dialer{Timeout: cfg.Timeout}

	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, cfg)
	if err != nil {
		raw.Close()

		return nil, err
	}

	return &sshConn{client: ssh.NewClient(conn, chans, reqs)}, nil
}

// Manager opens sessions and enforces the one-session-per-device rule
// with a keyed mutex.
type Manager struct {
	creds Credentials
	dial  Dialer
	locks sync.Map // serial -> *sync.Mutex
}

// NewManager creates a session manager using the real SSH dialer.
func NewManager(creds Credentials) *Manager {
	return &Manager{creds: creds, dial: sshDial}
}

// NewManagerWithDialer creates a session manager with a custom dialer.
func NewManagerWithDialer(creds Credentials, dial Dialer) *Manager {
	return &Manager{creds: creds, dial: dial}
}

// Session is one live connection to a device.
type Session struct {
	Dev  *device.Device
	conn Conn
}

// Run executes a command over the session.
func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	if s == nil || s.conn == nil {
		return "", faroserrors.ErrSessionNotHeld
	}

	zerolog.Ctx(ctx).Debug().Str("serial", s.Dev.Serial).Str("cmd", cmd).Msg("remote command")

	return s.conn.Run(cmd)
}

func (m *Manager) lockFor(serial string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(serial, &sync.Mutex{})

	l, ok := mu.(*sync.Mutex)
	if !ok {
		return &sync.Mutex{}
	}

	return l
}

// Connect opens a session to one device, holding its exclusive lock.
// The returned release function closes the session and drops the lock;
// it must be called exactly once.
func (m *Manager) Connect(ctx context.Context, dev *device.Device) (*Session, func(), error) {
	if err := m.creds.Validate(); err != nil {
		return nil, nil, err
	}

	lock := m.lockFor(dev.Serial)
	lock.Lock()

	cfg := &ssh.ClientConfig{
		User:            m.creds.User,
		Auth:            []ssh.AuthMethod{ssh.Password(m.creds.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // lab network, devices have no stable host keys
		Timeout:         dialTimeout,
	}

	conn, err := m.dial(ctx, net.JoinHostPort(dev.SSHHost(), sshPort), cfg)
	if err != nil {
		lock.Unlock()

		return nil, nil, fmt.Errorf("connect %s: %w", dev.Serial, err)
	}

	session := &Session{Dev: dev, conn: conn}
	release := func() {
		_ = conn.Close()
		lock.Unlock()
	}

	return session, release, nil
}

// WithSessions opens sessions to every device, runs fn with them keyed
// by serial, then closes everything. Session setup failures abort the
// whole operation; fn decides how individual command failures spread.
func (m *Manager) WithSessions(ctx context.Context, devs []*device.Device, fn func(map[string]*Session) error) error {
	sessions := make(map[string]*Session, len(devs))
	releases := make([]func(), 0, len(devs))

	var mu sync.Mutex

	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	for _, dev := range devs {
		dev := dev

		g.Go(func() error {
			session, release, err := m.Connect(gctx, dev)
			if err != nil {
				return err
			}

			mu.Lock()
			sessions[dev.Serial] = session
			releases = append(releases, release)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return fn(sessions)
}
