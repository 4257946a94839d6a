// Package ftp delivers wire documents to the customs host over FTP.
// One connection is held per delivery and is closed on every exit path.
package ftp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"tradewire/internal/credential"
	"tradewire/internal/wire"
)

// TransportError marks a terminal FTP failure for the attempt.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ftp %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Conn abstracts the jlaffaye/ftp server connection so transports can
// be faked in tests.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	MakeDir(path string) error
	CurrentDir() (string, error)
	Stor(path string, r io.Reader) error
	Type(ttype ftp.TransferType) error
	Quit() error
}

// DialFunc opens a connection to an FTP endpoint.
type DialFunc func(ctx context.Context, ep Endpoint) (Conn, error)

// defaultDial connects with jlaffaye/ftp. Passive endpoints force the
// classic PASV handshake; several legacy customs hosts reject EPSV.
func defaultDial(ctx context.Context, ep Endpoint) (Conn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(ep.timeout()),
	}
	if ep.Passive {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}
	return ftp.Dial(ep.addr(), opts...)
}

// Endpoint is the per-country FTP target configuration.
type Endpoint struct {
	Host     string
	Port     int
	Passive  bool
	BasePath string
	Timeout  time.Duration
}

func (e Endpoint) addr() string {
	port := e.Port
	if port == 0 {
		port = 21
	}
	return fmt.Sprintf("%s:%d", e.Host, port)
}

func (e Endpoint) timeout() time.Duration {
	if e.Timeout == 0 {
		return 30 * time.Second
	}
	return e.Timeout
}

// TestResult reports the outcome of a credential test.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Client uploads documents to one endpoint.
type Client struct {
	endpoint Endpoint
	dial     DialFunc
	logger   *zap.Logger
}

// NewClient returns a client for an endpoint.
func NewClient(endpoint Endpoint, logger *zap.Logger) *Client {
	return &Client{endpoint: endpoint, dial: defaultDial, logger: logger}
}

// NewClientWithDial injects a dialer, used by tests.
func NewClientWithDial(endpoint Endpoint, dial DialFunc, logger *zap.Logger) *Client {
	return &Client{endpoint: endpoint, dial: dial, logger: logger}
}

// Deliver uploads a document to {base_path}/{trader_id}/{filename} and
// returns the remote path. The connection is closed before return on
// both success and failure.
func (c *Client) Deliver(ctx context.Context, doc *wire.Document, cred *credential.FTPCredential) (string, error) {
	conn, err := c.dial(ctx, c.endpoint)
	if err != nil {
		return "", &TransportError{Op: "connect", Err: err}
	}
	defer func() {
		if qerr := conn.Quit(); qerr != nil {
			c.logger.Warn("ftp quit failed", zap.Error(qerr))
		}
	}()

	if err := conn.Login(cred.Username, cred.Password); err != nil {
		return "", &TransportError{Op: "login", Err: err}
	}
	if err := conn.Type(ftp.TransferTypeASCII); err != nil {
		return "", &TransportError{Op: "type", Err: err}
	}

	dir := path.Join(c.endpoint.BasePath, cred.TraderID)
	if err := c.ensureDirectoryExists(conn, dir); err != nil {
		return "", err
	}

	remotePath := path.Join(dir, doc.Filename)
	if err := c.upload(conn, doc.Content, doc.Filename); err != nil {
		return "", err
	}

	c.logger.Info("document delivered",
		zap.String("remote_path", remotePath),
		zap.Int("bytes", len(doc.Content)),
		zap.Int("lines", doc.LineCount))
	return remotePath, nil
}

// ensureDirectoryExists walks the path segment by segment, changing
// into each and creating it only when the change fails. After a mkdir
// it re-attempts the chdir so a race with another process creating the
// same segment is absorbed. Failing to reach a segment after that
// retry is terminal.
func (c *Client) ensureDirectoryExists(conn Conn, dir string) error {
	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		if err := conn.ChangeDir(segment); err == nil {
			continue
		}
		if err := conn.MakeDir(segment); err != nil {
			c.logger.Debug("mkdir failed, retrying chdir", zap.String("segment", segment), zap.Error(err))
		}
		if err := conn.ChangeDir(segment); err != nil {
			return &TransportError{Op: "chdir " + segment, Err: err}
		}
	}
	return nil
}

// upload stages the content through a temporary local file and stores
// it under its final name in the current remote directory.
func (c *Client) upload(conn Conn, content, filename string) error {
	tmp, err := os.CreateTemp("", "tradewire-*.t12")
	if err != nil {
		return &TransportError{Op: "stage", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.WriteString(tmp, content); err != nil {
		tmp.Close()
		return &TransportError{Op: "stage", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &TransportError{Op: "stage", Err: err}
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return &TransportError{Op: "stage", Err: err}
	}
	defer f.Close()

	if err := conn.Stor(filename, f); err != nil {
		return &TransportError{Op: "upload " + filename, Err: err}
	}
	return nil
}

// Test validates a credential with connect, login and a pwd probe. It
// never uploads. On success the caller marks the credential tested.
func (c *Client) Test(ctx context.Context, cred *credential.FTPCredential) TestResult {
	conn, err := c.dial(ctx, c.endpoint)
	if err != nil {
		return TestResult{Success: false, Message: "connection failed", Details: err.Error()}
	}
	defer conn.Quit()

	if err := conn.Login(cred.Username, cred.Password); err != nil {
		return TestResult{Success: false, Message: "login rejected", Details: err.Error()}
	}
	dir, err := conn.CurrentDir()
	if err != nil {
		return TestResult{Success: false, Message: "pwd failed", Details: err.Error()}
	}
	return TestResult{Success: true, Message: "credential accepted", Details: "remote dir " + dir}
}
