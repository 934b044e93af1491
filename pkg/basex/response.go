package basex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
)

// policy tells the interpreter how the calling operation reacts to 404 and 400.
type policy struct {
	op         string
	notFound   func(ctx context.Context) error
	badRequest Kind
}

// wrongEndpoint is the not-found reaction of requests against the REST root.
func (c *Client) wrongEndpoint(op string) func(context.Context) error {
	return func(context.Context) error {
		return c.invalidURL(op, nil)
	}
}

// databaseCheck is the not-found reaction of database-scoped requests. The
// databases listing surfaces a wrong endpoint as ErrInvalidURL before the
// database is reported missing.
func (c *Client) databaseCheck(op, database string) func(context.Context) error {
	return func(ctx context.Context) error {
		if c.recheckEndpoint {
			if _, err := c.GetDatabases(ctx); err != nil {
				return err
			}
		}
		return c.fail(&Error{
			Kind:    KindUnknownDatabase,
			Op:      op,
			Message: fmt.Sprintf("database %q does not exist", database),
		})
	}
}

func (c *Client) invalidURL(op string, cause error) error {
	return c.fail(&Error{
		Kind:    KindInvalidURL,
		Op:      op,
		Message: fmt.Sprintf("unable to complete the request, %q is not a valid BaseX REST URL", c.url),
		Cause:   cause,
	})
}

// exchange issues one request and returns the response body when the server
// answered with a 2xx status.
func (c *Client) exchange(ctx context.Context, s *session, method, target string, body []byte, p policy) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, c.fail(&Error{Kind: KindRequest, Op: p.op, Message: "failed to create request", Cause: err})
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	c.logger.Debug().
		Str("op", p.op).
		Str("method", method).
		Str("target", target).
		Msg("Sending request")

	start := time.Now()
	resp, err := s.do(req)
	if err != nil {
		c.observer.ObserveRequest(p.op, method, 0, time.Since(start))
		return nil, c.fail(&Error{
			Kind:    KindConnection,
			Op:      p.op,
			Message: fmt.Sprintf("unable to connect to %q", c.url),
			Cause:   err,
		})
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	c.observer.ObserveRequest(p.op, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, c.fail(&Error{Kind: KindConnection, Op: p.op, Message: "failed to read response body", Cause: err})
	}

	return c.interpret(ctx, resp.StatusCode, payload, p)
}

// interpret classifies a response status.
func (c *Client) interpret(ctx context.Context, status int, payload []byte, p policy) ([]byte, error) {
	switch {
	case status == http.StatusUnauthorized:
		msg := "credentials rejected"
		if c.user == "" || c.password == "" {
			msg = "credentials missing"
		}
		return nil, c.fail(&Error{Kind: KindAuthentication, Op: p.op, Message: msg})
	case status == http.StatusNotFound:
		return nil, p.notFound(ctx)
	case status == http.StatusBadRequest:
		kind := p.badRequest
		if kind == 0 {
			kind = KindRequest
		}
		return nil, c.fail(&Error{Kind: kind, Op: p.op, Message: string(stripNewlines(payload))})
	case status < 200 || status > 299:
		return nil, c.fail(&Error{
			Kind:    KindRequest,
			Op:      p.op,
			Message: fmt.Sprintf("unexpected status %d: %s", status, stripNewlines(payload)),
		})
	}
	return payload, nil
}

// listing parses a listing body and checks that its root element is the
// REST element named tag.
func (c *Client) listing(op string, payload []byte, tag string) (*etree.Element, error) {
	doc, err := parseXML(payload)
	if err != nil {
		return nil, c.invalidURL(op, err)
	}
	root := doc.Root()
	if !isRestElement(root, tag) {
		return nil, c.invalidURL(op, fmt.Errorf("unexpected root element %q", root.FullTag()))
	}
	return root, nil
}
