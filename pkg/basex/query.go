package basex

import (
	"context"
	"net/http"

	"github.com/beevik/etree"
)

// ExecuteQuery runs an XPath/XQuery expression against a database. The result
// fragments are returned as children of a synthetic <results> root. A query
// the server rejects fails with ErrQuery carrying the server's diagnostics.
func (c *Client) ExecuteQuery(ctx context.Context, query, database string) (*etree.Document, error) {
	const op = "execute_query"
	s, err := c.activeSession(op)
	if err != nil {
		return nil, err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return nil, err
	}

	body, err := queryEnvelope(query)
	if err != nil {
		return nil, c.fail(&Error{Kind: KindQuery, Op: op, Message: "failed to build query envelope", Cause: err})
	}
	c.logger.Debug().Str("database", db).Str("query", query).Msg("Executing query")

	payload, err := c.exchange(ctx, s, http.MethodPost, c.resourceURL(db, ""), body, policy{
		op:         op,
		notFound:   c.databaseCheck(op, db),
		badRequest: KindQuery,
	})
	if err != nil {
		return nil, err
	}

	results, err := wrapResults(payload)
	if err != nil {
		return nil, c.fail(&Error{Kind: KindQuery, Op: op, Message: "failed to parse query results", Cause: err})
	}
	return results, nil
}
