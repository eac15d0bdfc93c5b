// Package mudstub is a small stand-in for a text MUD server. It speaks the
// same login prompts and command responses as the real server closely
// enough to exercise mudsmoke end to end, without any game underneath.
//
// You can use nc or telnet to connect to it and look around.
package mudstub

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	prompt = "\r\n> "

	defaultWiztoolNoticeDelay = 100 * time.Millisecond
	defaultChunkGap           = 5 * time.Millisecond
)

// Server holds the TCP listener, configuration, character accounts and the
// channels used by its goroutines.
type Server struct {
	listenAddress        string // host:port or :port, resolved once listening
	listener             net.Listener
	log                  *logrus.Logger
	responseDelay        time.Duration // pause before answering each line
	chunkSize            int           // >0 splits every write into pieces of this many bytes
	chunkGap             time.Duration
	wiztoolNoticeDelay   time.Duration
	accountsMu           sync.Mutex
	accounts             map[string]*account // keyed by lower-case name
	addConnCh            chan *connection
	removeConnCh         chan *connection
	announceCh           chan announcement
	openForBusiness      context.Context    // cancelled by an interrupt signal
	stopReceivingSignals context.CancelFunc // Stop receiving notifications for OS signals
	shutdownCh           chan struct{}      // closed once shutdown starts
	shutdownOnce         sync.Once
	exitWG               sync.WaitGroup
}

// account is a character created through the new-character prompts.
type account struct {
	name     string
	password string
	admin    bool
}

// announcement is a line sent to every character in the game except its
// originator.
type announcement struct {
	from *connection
	text string
}

// ServerOption uses a function to set fields on a type Server by operating
// on that type as an argument.
type ServerOption func(*Server) error

// WithListenAddress sets the corresponding field in a type Server.
func WithListenAddress(l string) ServerOption {
	return func(s *Server) error {
		if l == "" || !strings.Contains(l, ":") {
			return errors.New("please specify the listen address as host:port or :port")
		}
		s.listenAddress = l
		return nil
	}
}

// WithDebugLogging outputs debug logs to standard error. By default, minimal
// informative log messages are output.
func WithDebugLogging() ServerOption {
	return func(s *Server) error {
		s.log.SetLevel(logrus.DebugLevel)
		return nil
	}
}

// WithLogWriter sets the io.Writer where log output is written.
func WithLogWriter(w io.Writer) ServerOption {
	return func(s *Server) error {
		s.log.SetOutput(w)
		return nil
	}
}

// WithResponseDelay makes the server pause before answering each line, like
// a busy server would.
func WithResponseDelay(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("response delay cannot be negative, got %v", d)
		}
		s.responseDelay = d
		return nil
	}
}

// WithChunkedWrites splits every response into writes of at most size
// bytes, pausing gap between them, so clients see prompts arrive in pieces.
func WithChunkedWrites(size int, gap time.Duration) ServerOption {
	return func(s *Server) error {
		if size < 1 {
			return fmt.Errorf("chunk size must be at least 1, got %d", size)
		}
		s.chunkSize = size
		s.chunkGap = gap
		return nil
	}
}

// WithWiztoolNoticeDelay sets how long after an administrator enters the
// game the wiztool announces itself. A negative delay disables the notice.
func WithWiztoolNoticeDelay(d time.Duration) ServerOption {
	return func(s *Server) error {
		s.wiztoolNoticeDelay = d
		return nil
	}
}

// NewServer returns a *Server, including optionally specified configuration.
// optional parameters can be specified via With*()
// functional options.
func NewServer(options ...ServerOption) (*Server, error) {
	openForBusiness, stopReceivingSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	s := &Server{
		listenAddress:        ":3000",
		wiztoolNoticeDelay:   defaultWiztoolNoticeDelay,
		accounts:             make(map[string]*account),
		addConnCh:            make(chan *connection),
		removeConnCh:         make(chan *connection),
		announceCh:           make(chan announcement),
		openForBusiness:      openForBusiness,
		stopReceivingSignals: stopReceivingSignals,
		shutdownCh:           make(chan struct{}),
	}
	s.createLog()
	for _, option := range options {
		err := option(s)
		if err != nil {
			stopReceivingSignals()
			return nil, err
		}
	}
	return s, nil
}

// createLog configures the logger, which only outputs info level messages by
// default.
func (s *Server) createLog() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		PadLevelText: true,
	})
	s.log = log
}

// GetListenAddress returns the listen address of the server. After
// ListenAndServe it is the address actually bound, so a port of 0 is
// replaced by the port chosen.
func (s *Server) GetListenAddress() string {
	return s.listenAddress
}

// Port returns the TCP port being listened on, or 0 before ListenAndServe.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// ListenAndServe begins listening for new connections, and starts the
// connection manager.
func (s *Server) ListenAndServe() error {
	var err error
	s.listener, err = net.Listen("tcp", s.listenAddress)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %v", s.listenAddress, err)
	}
	s.listenAddress = s.listener.Addr().String()
	s.log.Infof("listening for connections on %s", s.listenAddress)
	s.startConnectionManager()
	s.startConnectionAccepter()
	return nil
}

// startConnectionAccepter starts a goroutine that accepts connections and
// hands each to the connection manager and its own session goroutine.
func (s *Server) startConnectionAccepter() {
	s.exitWG.Add(1)
	go func() {
		defer s.exitWG.Done()
		s.log.Debugln("starting connection accepter")
		for {
			netConn, err := s.listener.Accept()
			if err != nil {
				if s.shuttingDown() || errors.Is(err, net.ErrClosed) {
					break // the listener was closed by InitiateShutdown
				}
				s.log.Debugf("while accepting a connection: %v", err)
				continue
			}
			s.log.Debugf("accepted connection from %s", netConn.RemoteAddr())
			c := s.newConnection(netConn)
			select {
			case s.addConnCh <- c:
			case <-s.shutdownCh:
				c.Close()
				continue
			}
			s.exitWG.Add(1)
			go c.serve()
		}
		s.log.Debugln("connection accepter exiting")
	}()
}

// startConnectionManager starts a goroutine that tracks connections, and
// relays announcements to every character in the game.
func (s *Server) startConnectionManager() {
	s.exitWG.Add(1)
	go func() {
		defer s.exitWG.Done()
		s.log.Debugln("starting connection manager")
		var current []*connection
		signals := s.openForBusiness.Done()
		for {
			select {
			case <-signals:
				signals = nil
				s.InitiateShutdown()
			case <-s.shutdownCh:
				for _, c := range current {
					c.write("\r\nThe server is shutting down - goodbye!\r\n")
					c.Close()
				}
				s.log.Debugln("connection manager exiting")
				return
			case c := <-s.addConnCh:
				current = append(current, c)
				s.log.Debugf("now tracking %d connections", len(current))
			case c := <-s.removeConnCh:
				current = removeConnection(current, c)
				c.Close()
				s.log.Debugf("now tracking %d connections", len(current))
			case a := <-s.announceCh:
				for _, c := range current {
					if c != a.from && c.inWorld.Load() {
						c.write(a.text + "\r\n")
					}
				}
			}
		}
	}()
}

// removeConnection returns current without toRemove.
func removeConnection(current []*connection, toRemove *connection) []*connection {
	kept := current[:0]
	for _, c := range current {
		if c != toRemove {
			kept = append(kept, c)
		}
	}
	return kept
}

// announce sends text to every other character in the game.
func (s *Server) announce(from *connection, text string) {
	select {
	case s.announceCh <- announcement{from: from, text: text}:
	case <-s.shutdownCh:
	}
}

// remove stops tracking c and closes it.
func (s *Server) remove(c *connection) {
	select {
	case s.removeConnCh <- c:
	case <-s.shutdownCh:
		c.Close()
	}
}

func (s *Server) shuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

// createAccount records a new character. The first character ever created
// is an administrator. It returns nil if name is already taken.
func (s *Server) createAccount(name, password string) *account {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	key := strings.ToLower(name)
	if _, ok := s.accounts[key]; ok {
		return nil
	}
	a := &account{name: name, password: password, admin: len(s.accounts) == 0}
	s.accounts[key] = a
	if a.admin {
		s.log.Infof("first character created: %s (admin)", name)
	}
	return a
}

func (s *Server) lookupAccount(name string) *account {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	return s.accounts[strings.ToLower(name)]
}

// InitiateShutdown starts shutting down goroutines for the server. It is
// safe to call more than once.
func (s *Server) InitiateShutdown() {
	s.shutdownOnce.Do(func() {
		s.log.Infoln("starting server shutdown. . .")
		s.stopReceivingSignals()
		close(s.shutdownCh)
		if s.listener != nil {
			s.listener.Close() // will unblock listener.Accept()
		}
	})
}

// WaitForExit waits for the server goroutines to finish.
func (s *Server) WaitForExit() {
	s.log.Debugln("waiting for go routines. . .")
	s.exitWG.Wait()
	s.log.Debugln("all cleanup is done")
}

// session states, in the order a new character passes through them.
type sessionState int

const (
	stateName sessionState = iota
	stateNewPassword
	stateConfirmPassword
	statePassword
	statePlaying
)

// connection holds one client's session.
type connection struct {
	netConn   net.Conn
	server    *Server
	writeMu   sync.Mutex
	closeOnce sync.Once
	inWorld   atomic.Bool // read by the connection manager
	state     sessionState
	name      string
	pending   string // first entry of a new password, awaiting confirmation
	account   *account
	cwd       string // wiztool working directory
}

func (s *Server) newConnection(netConn net.Conn) *connection {
	return &connection{netConn: netConn, server: s, cwd: "/"}
}

// Close closes the underlying net.Conn once.
func (c *connection) Close() {
	c.closeOnce.Do(func() {
		c.server.log.Debugf("closing connection %s", c.netConn.RemoteAddr())
		c.netConn.Close()
	})
}

// write sends text in one write, or in chunks when configured. Errors are
// only logged; the reading side notices a dead connection.
func (c *connection) write(text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	b := []byte(text)
	size := c.server.chunkSize
	if size <= 0 {
		size = len(b)
	}
	for len(b) > 0 {
		n := min(size, len(b))
		_, err := c.netConn.Write(b[:n])
		if err != nil {
			c.server.log.Debugf("error writing to %s: %v", c.netConn.RemoteAddr(), err)
			return
		}
		b = b[n:]
		if len(b) > 0 && c.server.chunkGap > 0 {
			time.Sleep(c.server.chunkGap)
		}
	}
}

// serve expects to have been run as a goroutine. It greets the client, then
// reads one line at a time, handing each to the login or command handler.
func (c *connection) serve() {
	defer c.server.exitWG.Done()
	defer c.server.remove(c)
	c.write("\r\nWelcome to the MUD stub!\r\n\r\nEnter your name: ")
	scanner := bufio.NewScanner(c.netConn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if c.state == statePlaying && line == "" {
			continue
		}
		if c.server.responseDelay > 0 {
			time.Sleep(c.server.responseDelay)
		}
		if c.state != statePlaying {
			c.login(line)
			continue
		}
		c.server.log.Debugf("%s: %s", c.name, line)
		if !c.command(line) {
			c.server.announce(c, c.name+" has left the game.")
			return
		}
	}
	err := scanner.Err()
	if err != nil && !c.server.shuttingDown() {
		c.server.log.Debugf("while reading from %s: %v", c.netConn.RemoteAddr(), err)
	}
}

// login advances the login sequence by one line of input.
func (c *connection) login(input string) {
	switch c.state {
	case stateName:
		if len(input) < 3 || len(input) > 15 {
			c.write("Name must be between 3 and 15 characters.\r\nEnter your name: ")
			return
		}
		c.name = input
		if a := c.server.lookupAccount(input); a != nil {
			c.account = a
			c.state = statePassword
			c.write(fmt.Sprintf("\r\nWelcome back, %s!\r\nEnter your password: ", a.name))
			return
		}
		c.state = stateNewPassword
		c.write(fmt.Sprintf("\r\nWelcome, %s! You appear to be new here.\r\nChoose a password: ", input))
	case stateNewPassword:
		if len(input) < 6 {
			c.write("Password must be at least 6 characters.\r\nChoose a password: ")
			return
		}
		c.pending = input
		c.state = stateConfirmPassword
		c.write("Confirm password: ")
	case stateConfirmPassword:
		if input != c.pending {
			c.pending = ""
			c.state = stateNewPassword
			c.write("\r\nPasswords don't match. Let's try again.\r\nChoose a password: ")
			return
		}
		a := c.server.createAccount(c.name, c.pending)
		c.pending = ""
		if a == nil {
			c.state = stateName
			c.write("\r\nThat name was just taken.\r\nEnter your name: ")
			return
		}
		c.account = a
		greeting := "\r\nCharacter created successfully!\r\n"
		if a.admin {
			greeting += "As the first player, you have been granted Admin privileges.\r\n"
		}
		c.enterWorld(greeting + "You materialize in the starting room.\r\n")
	case statePassword:
		if input != c.account.password {
			c.write("\r\nIncorrect password.\r\nEnter your password: ")
			return
		}
		c.enterWorld("\r\nYou materialize in the starting room.\r\n")
	}
}

// enterWorld finishes logging in, tells everyone else, and for
// administrators schedules the wiztool notice.
func (c *connection) enterWorld(message string) {
	c.state = statePlaying
	c.inWorld.Store(true)
	c.write(message + prompt)
	c.server.announce(c, c.name+" has entered the game.")
	if !c.account.admin || c.server.wiztoolNoticeDelay < 0 {
		return
	}
	c.server.exitWG.Add(1)
	go func() {
		defer c.server.exitWG.Done()
		select {
		case <-time.After(c.server.wiztoolNoticeDelay):
			c.write("\r\nWiztool attached." + prompt)
		case <-c.server.shutdownCh:
		}
	}()
}
