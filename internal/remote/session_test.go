package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"rsumon/internal/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		lost bool
	}{
		{name: "eof", err: io.EOF, lost: true},
		{name: "wrapped eof", err: fmt.Errorf("stat x: %w", io.EOF), lost: true},
		{name: "closed conn", err: net.ErrClosed, lost: true},
		{name: "sftp connection lost", err: sftp.ErrSSHFxConnectionLost, lost: true},
		{name: "op error", err: &net.OpError{Op: "read", Err: errors.New("reset")}, lost: true},
		{name: "permission denied", err: os.ErrPermission, lost: false},
		{name: "deadline", err: context.DeadlineExceeded, lost: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if errors.Is(got, ErrSessionLost) != tt.lost {
				t.Fatalf("classify(%v) = %v, lost want %v", tt.err, got, tt.lost)
			}
		})
	}
	if classify(nil) != nil {
		t.Fatal("classify(nil) should be nil")
	}
}

// pipeClient returns an SSH client connected in-process to a server whose
// global requests are handled by serve.
func pipeClient(t *testing.T, serve func(<-chan *ssh.Request)) *ssh.Client {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	serverCfg := &ssh.ServerConfig{NoClientAuth: true}
	serverCfg.AddHostKey(signer)

	clientSide, serverSide := net.Pipe()
	go func() {
		_, chans, reqs, err := ssh.NewServerConn(serverSide, serverCfg)
		if err != nil {
			return
		}
		go func() {
			for ch := range chans {
				_ = ch.Reject(ssh.Prohibited, "no channels")
			}
		}()
		serve(reqs)
	}()

	conn, chans, reqs, err := ssh.NewClientConn(clientSide, "obu", &ssh.ClientConfig{
		User:            "user",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		t.Fatalf("client handshake: %v", err)
	}
	client := ssh.NewClient(conn, chans, reqs)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSession_TimedOutRead(t *testing.T) {
	readErr := fmt.Errorf("stat /rx.pcap: %w", context.DeadlineExceeded)

	tests := []struct {
		name  string
		serve func(<-chan *ssh.Request)
		lost  bool
	}{
		{
			name: "peer answers keepalive",
			serve: func(reqs <-chan *ssh.Request) {
				for r := range reqs {
					if r.WantReply {
						_ = r.Reply(false, nil)
					}
				}
			},
		},
		{
			name: "peer silent",
			serve: func(reqs <-chan *ssh.Request) {
				for range reqs {
				}
			},
			lost: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{cfg: config.RemoteConfig{KeepaliveTimeout: 100 * time.Millisecond}}
			err := s.timedOut(pipeClient(t, tt.serve), readErr)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("timedOut lost the read error: %v", err)
			}
			if errors.Is(err, ErrSessionLost) != tt.lost {
				t.Fatalf("timedOut = %v, lost want %v", err, tt.lost)
			}
		})
	}
}

func TestDial_NoAuthConfigured(t *testing.T) {
	_, err := Dial(context.Background(), config.RemoteConfig{Host: "127.0.0.1", Port: 22, User: "u"})
	if err == nil {
		t.Fatal("expected error without auth method")
	}
}

func TestSession_ClosedRejectsReads(t *testing.T) {
	s := &Session{cfg: config.RemoteConfig{Host: "obu", Port: 22}}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.FileSize(context.Background(), "/rx.pcap"); !errors.Is(err, ErrClosed) {
		t.Fatalf("FileSize after close: %v", err)
	}
	if _, err := s.PositionFix(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("PositionFix after close: %v", err)
	}
	if err := s.Reconnect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Reconnect after close: %v", err)
	}
}

func TestSession_Live(t *testing.T) {
	host := os.Getenv("RSUMON_TEST_SSH_HOST")
	if host == "" {
		t.Skip("RSUMON_TEST_SSH_HOST not set")
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Remote.Host = host

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Dial(ctx, cfg.Remote)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	size, err := s.FileSize(ctx, cfg.Remote.RxFile)
	if err != nil {
		t.Fatalf("file size: %v", err)
	}
	t.Logf("rx size=%d", size)

	if missing, err := s.FileSize(ctx, cfg.Remote.RxFile+".does-not-exist"); err != nil || missing != 0 {
		t.Fatalf("missing file = %d, %v; want 0, nil", missing, err)
	}

	if err := s.Reconnect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if _, err := s.FileSize(ctx, cfg.Remote.RxFile); err != nil {
		t.Fatalf("file size after reconnect: %v", err)
	}
}
