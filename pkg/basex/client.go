package basex

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to a BaseX server through its REST interface.
//
// A Client is not safe for concurrent use. Use one Client per goroutine or
// serialize access externally.
type Client struct {
	url             string
	defaultDatabase string
	user            string
	password        string
	logger          zerolog.Logger
	observer        Observer
	httpClient      *http.Client
	timeout         time.Duration
	recheckEndpoint bool

	// transport backs the sessions the Client creates itself. It is built on
	// the first Connect and shared by later sessions.
	transport *http.Transport
	session   *session
}

// Option configures a Client.
type Option func(*Client)

// Observer receives one call per HTTP exchange and per batch rollback.
// status is 0 when the request never got a response.
type Observer interface {
	ObserveRequest(operation, method string, status int, took time.Duration)
	ObserveRollback(reverted, failed int)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, int, time.Duration) {}
func (nopObserver) ObserveRollback(int, int)                           {}

// WithDefaultDatabase sets the database used when an operation gets an empty name.
func WithDefaultDatabase(name string) Option {
	return func(c *Client) {
		c.defaultDatabase = name
	}
}

// WithCredentials sets the basic-auth pair. Both must be non-empty to be sent.
func WithCredentials(user, password string) Option {
	return func(c *Client) {
		c.user = user
		c.password = password
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient makes every session use hc instead of a client of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout of sessions the Client creates itself.
// It has no effect together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithObserver sets the request observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithoutEndpointRecheck turns a 404 on a database-scoped request directly
// into ErrUnknownDatabase instead of listing databases first to tell a wrong
// endpoint apart from a missing database.
func WithoutEndpointRecheck() Option {
	return func(c *Client) {
		c.recheckEndpoint = false
	}
}

// New returns a disconnected Client for the REST root at url,
// e.g. "http://localhost:8984/rest".
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:             strings.TrimRight(url, "/"),
		logger:          zerolog.Nop(),
		observer:        nopObserver{},
		recheckEndpoint: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "basex_client").Str("url", c.url).Logger()
	return c
}

// URL returns the REST root the client talks to.
func (c *Client) URL() string {
	return c.url
}

// DefaultDatabase returns the configured default database, possibly empty.
func (c *Client) DefaultDatabase() string {
	return c.defaultDatabase
}

// session is an open transport context.
type session struct {
	http     *http.Client
	user     string
	password string
}

func (s *session) authenticated() bool {
	return s.user != "" && s.password != ""
}

func (s *session) do(req *http.Request) (*http.Response, error) {
	if s.authenticated() {
		req.SetBasicAuth(s.user, s.password)
	}
	return s.http.Do(req)
}

func (s *session) close() {
	s.http.CloseIdleConnections()
}

// Connect opens a session. Calling it on a connected Client replaces the
// current session.
func (c *Client) Connect() {
	if c.session != nil {
		c.session.close()
	}
	c.logger.Debug().Msg("Creating session")

	s := &session{
		http:     c.httpClient,
		user:     c.user,
		password: c.password,
	}
	if s.http == nil {
		s.http = &http.Client{Transport: c.sessionTransport(), Timeout: c.timeout}
	}
	c.session = s
}

func (c *Client) sessionTransport() *http.Transport {
	if c.transport == nil {
		c.transport = http.DefaultTransport.(*http.Transport).Clone()
		// Release pooled connections if the Client is dropped while connected.
		runtime.AddCleanup(c, func(t *http.Transport) { t.CloseIdleConnections() }, c.transport)
	}
	return c.transport
}

// Disconnect closes the session. It is a no-op on a disconnected Client.
func (c *Client) Disconnect() {
	c.logger.Debug().Msg("Closing session")
	if c.session != nil {
		c.session.close()
	}
	c.session = nil
}

// Close implements io.Closer.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	return c.session != nil
}

// WithSession connects, runs fn and disconnects on every exit path.
func (c *Client) WithSession(fn func(*Client) error) error {
	c.Connect()
	defer c.Disconnect()
	return fn(c)
}

// activeSession fails with ErrConnectionClosed when no session is open.
func (c *Client) activeSession(op string) (*session, error) {
	if c.session == nil {
		return nil, c.fail(&Error{Kind: KindConnectionClosed, Op: op, Message: "connection closed"})
	}
	return c.session, nil
}

// fail logs err at the point of detection and returns it.
func (c *Client) fail(err *Error) *Error {
	ev := c.logger.Error().
		Str("op", err.Op).
		Str("kind", err.Kind.String())
	if err.Cause != nil {
		ev = ev.Err(err.Cause)
	}
	ev.Msg(err.Message)
	return err
}
