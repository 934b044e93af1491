package basex

import (
	"context"
	"fmt"
	"net/http"
)

// Database describes a database as listed by the server.
type Database struct {
	Name      string
	Size      int64
	Resources int
}

// GetDatabases lists all databases.
func (c *Client) GetDatabases(ctx context.Context) ([]Database, error) {
	const op = "get_databases"
	s, err := c.activeSession(op)
	if err != nil {
		return nil, err
	}

	payload, err := c.exchange(ctx, s, http.MethodGet, c.url, nil, policy{
		op:       op,
		notFound: c.wrongEndpoint(op),
	})
	if err != nil {
		return nil, err
	}

	root, err := c.listing(op, payload, "databases")
	if err != nil {
		return nil, err
	}

	var dbs []Database
	for _, e := range root.ChildElements() {
		size, err := intAttr(e, "size")
		if err != nil {
			return nil, c.invalidURL(op, err)
		}
		resources, err := intAttr(e, "resources")
		if err != nil {
			return nil, c.invalidURL(op, err)
		}
		dbs = append(dbs, Database{Name: e.Text(), Size: size, Resources: int(resources)})
	}
	return dbs, nil
}

// hasDatabase reports whether name is listed.
func (c *Client) hasDatabase(ctx context.Context, name string) (bool, error) {
	dbs, err := c.GetDatabases(ctx)
	if err != nil {
		return false, err
	}
	for _, db := range dbs {
		if db.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateDatabase creates a database and fails with ErrOverwrite if the name
// is already listed. The check and the creation are two requests, so a
// concurrent writer can create the same database in between.
func (c *Client) CreateDatabase(ctx context.Context, name string) error {
	const op = "create_database"
	if _, err := c.activeSession(op); err != nil {
		return err
	}
	db, err := c.resolveDatabase(op, name)
	if err != nil {
		return err
	}

	exists, err := c.hasDatabase(ctx, db)
	if err != nil {
		return err
	}
	if exists {
		return c.fail(&Error{
			Kind:    KindOverwrite,
			Op:      op,
			Message: fmt.Sprintf("database %q already exists and overwrite disabled", db),
		})
	}
	return c.putDatabase(ctx, op, db)
}

// ReplaceDatabase creates a database, replacing an existing one of the same name.
func (c *Client) ReplaceDatabase(ctx context.Context, name string) error {
	const op = "replace_database"
	if _, err := c.activeSession(op); err != nil {
		return err
	}
	db, err := c.resolveDatabase(op, name)
	if err != nil {
		return err
	}
	return c.putDatabase(ctx, op, db)
}

func (c *Client) putDatabase(ctx context.Context, op, db string) error {
	s, err := c.activeSession(op)
	if err != nil {
		return err
	}
	c.logger.Info().Str("database", db).Str("op", op).Msg("Creating database")

	_, err = c.exchange(ctx, s, http.MethodPut, c.resourceURL(db, ""), nil, policy{
		op:       op,
		notFound: c.wrongEndpoint(op),
	})
	return err
}

// DeleteDatabase drops a database.
func (c *Client) DeleteDatabase(ctx context.Context, name string) error {
	const op = "delete_database"
	s, err := c.activeSession(op)
	if err != nil {
		return err
	}
	db, err := c.resolveDatabase(op, name)
	if err != nil {
		return err
	}
	c.logger.Info().Str("database", db).Msg("Deleting database")

	_, err = c.exchange(ctx, s, http.MethodDelete, c.resourceURL(db, ""), nil, policy{
		op:       op,
		notFound: c.databaseCheck(op, db),
	})
	return err
}
