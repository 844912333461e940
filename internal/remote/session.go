// README: SSH/SFTP session to the on-board unit; reads rx file size and runs the position fix command.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"rsumon/internal/config"
	"rsumon/internal/types"
)

var (
	ErrSessionLost  = errors.New("remote session lost")
	ErrMalformedFix = errors.New("malformed position fix")
	ErrClosed       = errors.New("remote session closed")
)

const defaultKeepaliveTimeout = 2 * time.Second

// Session is a single SSH connection with an SFTP subsystem, shared by every
// tick of a run.
type Session struct {
	cfg config.RemoteConfig

	mu     sync.RWMutex
	ssh    *ssh.Client
	sftp   *sftp.Client
	closed bool
}

// Dial opens the SSH connection and the SFTP client.
func Dial(ctx context.Context, cfg config.RemoteConfig) (*Session, error) {
	s := &Session{cfg: cfg}
	sshClient, sftpClient, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.ssh, s.sftp = sshClient, sftpClient
	return s, nil
}

func (s *Session) connect(ctx context.Context) (*ssh.Client, *sftp.Client, error) {
	clientCfg, err := s.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	addr := s.cfg.Addr()
	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if s.cfg.DialTimeout > 0 {
		_ = netConn.SetDeadline(time.Now().Add(s.cfg.DialTimeout))
	}
	sshConn, channels, requests, err := ssh.NewClientConn(netConn, addr, clientCfg)
	if err != nil {
		_ = netConn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(sshConn, channels, requests)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("open sftp session: %w", err)
	}
	slog.Info("remote session established", "addr", addr, "user", s.cfg.User)
	return sshClient, sftpClient, nil
}

func (s *Session) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if s.cfg.KeyFile != "" {
		key, err := os.ReadFile(s.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if s.cfg.Password != "" {
		auth = append(auth, ssh.Password(s.cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no ssh auth method configured: set a password or key file")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if s.cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(s.cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	} else {
		slog.Warn("host key verification disabled; set RSUMON_REMOTE_KNOWN_HOSTS to enable", "addr", s.cfg.Addr())
	}

	return &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         s.cfg.DialTimeout,
	}, nil
}

func (s *Session) clients() (*ssh.Client, *sftp.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, ErrClosed
	}
	if s.ssh == nil || s.sftp == nil {
		return nil, nil, ErrSessionLost
	}
	return s.ssh, s.sftp, nil
}

// FileSize returns the size of the remote file at path. A file that does not
// exist yet reports size 0.
func (s *Session) FileSize(ctx context.Context, path string) (int64, error) {
	sshClient, client, err := s.clients()
	if err != nil {
		return 0, err
	}

	type result struct {
		size int64
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		fi, err := client.Stat(path)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{size: fi.Size()}
	}()

	select {
	case <-ctx.Done():
		return 0, s.timedOut(sshClient, fmt.Errorf("stat %s: %w", path, ctx.Err()))
	case r := <-ch:
		if errors.Is(r.err, os.ErrNotExist) {
			return 0, nil
		}
		if r.err != nil {
			return 0, classify(fmt.Errorf("stat %s: %w", path, r.err))
		}
		return r.size, nil
	}
}

// PositionFix runs the configured fix command and parses its output. The
// command channel is closed when ctx expires.
func (s *Session) PositionFix(ctx context.Context) (types.Point, error) {
	client, _, err := s.clients()
	if err != nil {
		return types.Point{}, err
	}
	sess, err := client.NewSession()
	if err != nil {
		return types.Point{}, fmt.Errorf("%w: open exec channel: %v", ErrSessionLost, err)
	}
	defer sess.Close()

	var out bytes.Buffer
	sess.Stdout = &out
	done := make(chan error, 1)
	go func() { done <- sess.Run(s.cfg.FixCommand) }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		return types.Point{}, s.timedOut(client, fmt.Errorf("run fix command: %w", ctx.Err()))
	case err := <-done:
		var exitErr *ssh.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return types.Point{}, classify(fmt.Errorf("run fix command: %w", err))
		}
	}
	return ParseFix(out.String())
}

// timedOut checks a connection whose read hit its deadline. A keepalive that
// is not answered in time means the peer is gone without a reset, so err is
// reported as session loss; otherwise err stays transient.
func (s *Session) timedOut(client *ssh.Client, err error) error {
	timeout := s.cfg.KeepaliveTimeout
	if timeout <= 0 {
		timeout = defaultKeepaliveTimeout
	}
	if kerr := keepalive(client, timeout); kerr != nil {
		return fmt.Errorf("%w: %w", err, kerr)
	}
	return err
}

// keepalive sends an OpenSSH keepalive global request and waits for any reply.
// The request goroutine ends once the connection is closed.
func keepalive(client *ssh.Client, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
		done <- err
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: keepalive: %v", ErrSessionLost, err)
		}
		return nil
	case <-t.C:
		return fmt.Errorf("%w: keepalive unanswered after %s", ErrSessionLost, timeout)
	}
}

// Reconnect replaces the underlying connection with a fresh one.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closeClientsLocked()
	s.mu.Unlock()

	sshClient, sftpClient, err := s.connect(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = sftpClient.Close()
		_ = sshClient.Close()
		return ErrClosed
	}
	s.ssh, s.sftp = sshClient, sftpClient
	return nil
}

// Close releases the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.closeClientsLocked()
	slog.Info("remote session closed", "addr", s.cfg.Addr())
	return err
}

func (s *Session) closeClientsLocked() error {
	var errs []error
	if s.sftp != nil {
		errs = append(errs, s.sftp.Close())
		s.sftp = nil
	}
	if s.ssh != nil {
		if err := s.ssh.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		s.ssh = nil
	}
	return errors.Join(errs...)
}

// classify marks connection-level failures as session loss; anything else
// stays a transient per-tick failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, sftp.ErrSSHFxConnectionLost),
		errors.Is(err, sftp.ErrSSHFxNoConnection),
		errors.As(err, &opErr):
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}
