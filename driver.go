package mudsmoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const maskedSecret = "********"

// Dialer opens the TCP connection to the MUD server. *net.Dialer satisfies
// it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// WaitPolicy tells SendCommand how to decide a response is complete. With a
// Pattern, output is accumulated until the pattern matches or Timeout
// elapses. The zero value sleeps the drain delay and performs a single
// best-effort read, for output with no reliable completion marker.
type WaitPolicy struct {
	Pattern *Pattern
	Timeout time.Duration // 0 uses the driver's command timeout
}

// WaitFor returns a WaitPolicy that waits for p for up to timeout.
func WaitFor(p *Pattern, timeout time.Duration) WaitPolicy {
	return WaitPolicy{Pattern: p, Timeout: timeout}
}

// Driver owns one connection to a MUD server and turns its unframed stream
// of text into request/response exchanges. A Driver is not safe for
// concurrent use; one controlling sequence drives it from Connect to
// Disconnect.
type Driver struct {
	host           string
	port           int
	conn           net.Conn // nil while disconnected
	dialer         Dialer
	log            *logrus.Logger
	connectTimeout time.Duration
	receiveTimeout time.Duration
	pacingDelay    time.Duration
	settleDelay    time.Duration
	callTimeout    time.Duration
	commandTimeout time.Duration
	drainDelay     time.Duration
	decode         decoder
	stripANSI      bool
	transcript     io.Writer    // optional copy of everything sent and received
	buf            bytes.Buffer // accumulation buffer, owned by ReceiveUntil
	readBuf        []byte
}

// DriverOption uses a function to set fields on a type Driver by operating
// on that type as an argument.
type DriverOption func(*Driver) error

// WithAddress sets the MUD server host and port.
func WithAddress(host string, port int) DriverOption {
	return func(d *Driver) error {
		if host == "" {
			return errors.New("please specify the MUD server host")
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d out of range 1-65535", port)
		}
		d.host = host
		d.port = port
		return nil
	}
}

// WithConnectTimeout bounds the TCP connection attempt.
func WithConnectTimeout(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", t)
		}
		d.connectTimeout = t
		return nil
	}
}

// WithReceiveTimeout bounds each individual socket read.
func WithReceiveTimeout(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t <= 0 {
			return fmt.Errorf("receive timeout must be positive, got %v", t)
		}
		d.receiveTimeout = t
		return nil
	}
}

// WithPacingDelay sets the pause after every line sent.
func WithPacingDelay(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t < 0 {
			return fmt.Errorf("pacing delay cannot be negative, got %v", t)
		}
		d.pacingDelay = t
		return nil
	}
}

// WithSettleDelay sets the pause after connecting, before the first read.
func WithSettleDelay(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t < 0 {
			return fmt.Errorf("settle delay cannot be negative, got %v", t)
		}
		d.settleDelay = t
		return nil
	}
}

// WithCallTimeout sets the default ceiling for a ReceiveUntil call.
func WithCallTimeout(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t <= 0 {
			return fmt.Errorf("call timeout must be positive, got %v", t)
		}
		d.callTimeout = t
		return nil
	}
}

// WithCommandTimeout sets the ceiling SendCommand uses when waiting for a
// pattern without an explicit timeout.
func WithCommandTimeout(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t <= 0 {
			return fmt.Errorf("command timeout must be positive, got %v", t)
		}
		d.commandTimeout = t
		return nil
	}
}

// WithDrainDelay sets the pause before the single read SendCommand does
// when it has no pattern to wait for.
func WithDrainDelay(t time.Duration) DriverOption {
	return func(d *Driver) error {
		if t < 0 {
			return fmt.Errorf("drain delay cannot be negative, got %v", t)
		}
		d.drainDelay = t
		return nil
	}
}

// WithCharset selects how received bytes are decoded, see CharsetUTF8 and
// CharsetLatin1.
func WithCharset(charset string) DriverOption {
	return func(d *Driver) error {
		dec, err := newDecoder(charset)
		if err != nil {
			return err
		}
		d.decode = dec
		return nil
	}
}

// WithStripANSI removes terminal escape sequences from received text before
// it is matched or returned.
func WithStripANSI() DriverOption {
	return func(d *Driver) error {
		d.stripANSI = true
		return nil
	}
}

// WithTranscript copies every line sent and every chunk received to w.
// Secrets are masked.
func WithTranscript(w io.Writer) DriverOption {
	return func(d *Driver) error {
		d.transcript = w
		return nil
	}
}

// WithDialer replaces the TCP dialer, which is useful in tests.
func WithDialer(dialer Dialer) DriverOption {
	return func(d *Driver) error {
		if dialer == nil {
			return errors.New("dialer cannot be nil")
		}
		d.dialer = dialer
		return nil
	}
}

// WithLogger shares an existing logger with the driver.
func WithLogger(l *logrus.Logger) DriverOption {
	return func(d *Driver) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		d.log = l
		return nil
	}
}

// WithLogWriter sets the io.Writer where log output is written.
func WithLogWriter(w io.Writer) DriverOption {
	return func(d *Driver) error {
		d.log.SetOutput(w)
		return nil
	}
}

// WithDebugLogging logs every send, read and match decision.
func WithDebugLogging() DriverOption {
	return func(d *Driver) error {
		d.log.SetLevel(logrus.DebugLevel)
		return nil
	}
}

// NewDriver returns a disconnected *Driver. Optional configuration is
// specified via With*() functional options.
func NewDriver(options ...DriverOption) (*Driver, error) {
	d := &Driver{
		host:           DefaultHost,
		port:           DefaultPort,
		dialer:         &net.Dialer{},
		log:            newLogger(),
		connectTimeout: DefaultConnectTimeout,
		receiveTimeout: DefaultReceiveTimeout,
		pacingDelay:    DefaultPacingDelay,
		settleDelay:    DefaultSettleDelay,
		callTimeout:    DefaultCallTimeout,
		commandTimeout: DefaultCommandTimeout,
		drainDelay:     DefaultDrainDelay,
		decode:         decodeUTF8,
		readBuf:        make([]byte, readBufferSize),
	}
	for _, option := range options {
		err := option(d)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// newLogger configures a logger, which only outputs info level messages by
// default.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		PadLevelText: true,
	})
	return log
}

// Address returns the host:port of the MUD server.
func (d *Driver) Address() string {
	return net.JoinHostPort(d.host, strconv.Itoa(d.port))
}

// Connected reports whether the driver holds a live connection.
func (d *Driver) Connected() bool {
	return d.conn != nil
}

// Connect opens the TCP connection. It does not retry. On success it sleeps
// the settle delay so the welcome banner can begin arriving before the first
// read. Connecting an already connected driver does nothing.
func (d *Driver) Connect(ctx context.Context) error {
	if d.conn != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()
	d.log.Debugf("connecting to %s", d.Address())
	conn, err := d.dialer.DialContext(ctx, "tcp", d.Address())
	if err != nil {
		return &NetworkError{Op: "dial", Addr: d.Address(), Err: err}
	}
	d.conn = conn
	d.log.Infof("connected to %s", d.Address())
	time.Sleep(d.settleDelay)
	return nil
}

// Disconnect closes the connection if there is one. It is safe to call any
// number of times, including when Connect never succeeded. Close errors are
// only logged.
func (d *Driver) Disconnect() {
	if d.conn == nil {
		return
	}
	err := d.conn.Close()
	if err != nil {
		d.log.Debugf("while closing connection to %s: %v", d.Address(), err)
	}
	d.conn = nil
	d.log.Debugf("disconnected from %s", d.Address())
}

// SendLine writes text followed by a newline, then sleeps the pacing delay.
// A write failure is returned but is not fatal to the session.
func (d *Driver) SendLine(text string) error {
	return d.send(text, text)
}

// SendSecret is SendLine for text that must not appear in logs or
// transcripts, such as passwords.
func (d *Driver) SendSecret(text string) error {
	return d.send(text, maskedSecret)
}

func (d *Driver) send(text, shown string) error {
	if d.conn == nil {
		return ErrNotConnected
	}
	d.log.Debugf("sending %q", shown)
	d.record("> " + shown + "\n")
	_ = d.conn.SetWriteDeadline(time.Now().Add(d.receiveTimeout))
	_, err := d.conn.Write([]byte(text + "\n"))
	if err != nil {
		return &NetworkError{Op: "write", Addr: d.Address(), Err: err}
	}
	time.Sleep(d.pacingDelay)
	return nil
}

// ReceiveUntil accumulates output until p matches the whole accumulated
// text, the peer closes the connection, or timeout elapses, whichever comes
// first. A timeout of 0 uses the driver's call timeout. Running out of time
// is not an error: the partial output is returned for the caller to
// inspect. The buffer is cleared at the start of each call, so only output
// arriving during this call is seen.
func (d *Driver) ReceiveUntil(p *Pattern, timeout time.Duration) (string, error) {
	if d.conn == nil {
		return "", ErrNotConnected
	}
	if timeout <= 0 {
		timeout = d.callTimeout
	}
	d.buf.Reset()
	start := time.Now()
	deadline := start.Add(timeout)
	var text string
	for {
		now := time.Now()
		if !now.Before(deadline) {
			d.log.Debugf("gave up waiting for %s after %v, have %d bytes", p, timeout, d.buf.Len())
			return text, nil
		}
		readDeadline := now.Add(d.receiveTimeout)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		n, err := d.read(readDeadline)
		if n > 0 {
			d.buf.Write(d.readBuf[:n])
			text = d.text(d.buf.Bytes())
			if p.MatchString(text) {
				d.log.Debugf("matched %s after %v", p, time.Since(start))
				return text, nil
			}
		}
		switch {
		case err == nil:
		case isTimeout(err):
			// Nothing arrived within this read; keep polling.
		case errors.Is(err, io.EOF):
			d.log.Debugf("%s closed the connection while waiting for %s", d.Address(), p)
			return text, nil
		default:
			return text, &NetworkError{Op: "read", Addr: d.Address(), Err: err}
		}
	}
}

// SendCommand sends cmd and collects its response according to wait. A send
// failure does not stop the read, so the caller still sees whatever the
// server had to say.
func (d *Driver) SendCommand(cmd string, wait WaitPolicy) (string, error) {
	sendErr := d.SendLine(cmd)
	if sendErr != nil {
		d.log.Warnf("sending %q: %v", cmd, sendErr)
	}
	if errors.Is(sendErr, ErrNotConnected) {
		return "", sendErr
	}
	var (
		output string
		err    error
	)
	if wait.Pattern != nil {
		timeout := wait.Timeout
		if timeout <= 0 {
			timeout = d.commandTimeout
		}
		output, err = d.ReceiveUntil(wait.Pattern, timeout)
	} else {
		time.Sleep(d.drainDelay)
		output, err = d.Drain()
	}
	return output, errors.Join(sendErr, err)
}

// Drain performs a single best-effort read bounded by the receive timeout,
// returning whatever arrived. Receiving nothing is not an error.
func (d *Driver) Drain() (string, error) {
	if d.conn == nil {
		return "", ErrNotConnected
	}
	n, err := d.read(time.Now().Add(d.receiveTimeout))
	var text string
	if n > 0 {
		text = d.text(d.readBuf[:n])
	}
	if err != nil && !isTimeout(err) && !errors.Is(err, io.EOF) {
		return text, &NetworkError{Op: "read", Addr: d.Address(), Err: err}
	}
	return text, nil
}

// read performs one socket read into readBuf.
func (d *Driver) read(deadline time.Time) (int, error) {
	_ = d.conn.SetReadDeadline(deadline)
	n, err := d.conn.Read(d.readBuf)
	if n > 0 {
		d.log.Debugf("read %d bytes from %s", n, d.Address())
		d.record(d.decode(d.readBuf[:n]))
	}
	return n, err
}

// text decodes raw bytes the way every caller sees server output.
func (d *Driver) text(b []byte) string {
	s := d.decode(b)
	if d.stripANSI {
		s = stripANSI(s)
	}
	return s
}

func (d *Driver) record(s string) {
	if d.transcript == nil {
		return
	}
	_, err := io.WriteString(d.transcript, strings.ReplaceAll(s, "\r\n", "\n"))
	if err != nil {
		d.log.Debugf("writing transcript: %v", err)
	}
}

// isTimeout reports whether err is a read or write deadline expiring.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
