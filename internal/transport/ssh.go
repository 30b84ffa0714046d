package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/fleetrun/fleetrun/internal/hostlist"
)

// DefaultTimeout bounds dial plus handshake when the caller supplies
// none.
const DefaultTimeout = 10 * time.Second

// SSHDialer opens one SSH session per host.
type SSHDialer struct {
	// Timeout bounds the TCP dial and the protocol handshake together.
	Timeout time.Duration
}

func (d *SSHDialer) Dial(ctx context.Context, host hostlist.Host) (Session, error) {
	methods, err := authMethods(host.Auth)
	if err != nil {
		return nil, &Error{Kind: KindAuth, Err: err}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg := &ssh.ClientConfig{
		User:            host.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
		BannerCallback:  func(string) error { return nil }, // ignore banner
	}

	client, err := dialContext(ctx, host.Addr(), cfg)
	if err != nil {
		return nil, classify(err)
	}
	return &sshSession{client: client}, nil
}

// dialContext is ssh.Dial with context cancellation: the raw conn is
// closed when ctx is cancelled mid-handshake, and the handshake shares
// the dial timeout via a deadline on the conn.
func dialContext(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	nd := net.Dialer{Timeout: cfg.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("handshake %s: %w", addr, ctx.Err())
		}
		return nil, fmt.Errorf("handshake %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// sshSession owns one *ssh.Client for the duration of one command.
type sshSession struct {
	client *ssh.Client
	sess   *ssh.Session

	closeOnce sync.Once
	closeErr  error
}

func (s *sshSession) Execute(command string) (*Streams, error) {
	if s.sess != nil {
		return nil, &Error{Kind: KindCommand, Err: fmt.Errorf("session already executed a command")}
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, &Error{Kind: KindCommand, Err: fmt.Errorf("new session: %w", err)}
	}
	s.sess = sess

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, &Error{Kind: KindCommand, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return nil, &Error{Kind: KindCommand, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	if err := sess.Start(command); err != nil {
		return nil, &Error{Kind: KindCommand, Err: fmt.Errorf("start command: %w", err)}
	}

	return &Streams{
		Stdout: stdout,
		Stderr: stderr,
		Wait:   func() (int, error) { return exitStatus(sess.Wait()) },
	}, nil
}

// exitStatus converts a session Wait error into the remote exit code.
// A non-zero exit is data, not a transport failure.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return exitErr.ExitStatus(), nil
	}
	if _, ok := err.(*ssh.ExitMissingError); ok {
		return 0, &Error{Kind: KindCommand, Err: err}
	}
	return 0, &Error{Kind: KindConnection, Err: err}
}

// Close releases the command channel and the underlying connection.
// Safe to call more than once and at any pipeline stage.
func (s *sshSession) Close() error {
	s.closeOnce.Do(func() {
		if s.sess != nil {
			s.sess.Close()
		}
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
