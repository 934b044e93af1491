package basex

import (
	"context"
	"fmt"
	"net/http"

	"github.com/beevik/etree"
)

// Resource describes a stored document as listed by the server.
type Resource struct {
	ID          string
	Type        string
	ContentType string
	Size        int64
}

// DocumentLookup is the result of fetching a document. Found is false and
// Document nil when the database holds no resource under ID.
type DocumentLookup struct {
	ID       string
	Document *etree.Document
	Found    bool
}

// GetResources lists the documents of a database.
func (c *Client) GetResources(ctx context.Context, database string) ([]Resource, error) {
	const op = "get_resources"
	if _, err := c.activeSession(op); err != nil {
		return nil, err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return nil, err
	}
	return c.listResources(ctx, op, db)
}

func (c *Client) listResources(ctx context.Context, op, db string) ([]Resource, error) {
	s, err := c.activeSession(op)
	if err != nil {
		return nil, err
	}

	payload, err := c.exchange(ctx, s, http.MethodGet, c.resourceURL(db, ""), nil, policy{
		op:       op,
		notFound: c.databaseCheck(op, db),
	})
	if err != nil {
		return nil, err
	}

	root, err := c.listing(op, payload, "database")
	if err != nil {
		return nil, err
	}

	var resources []Resource
	for _, e := range root.ChildElements() {
		size, err := intAttr(e, "size")
		if err != nil {
			return nil, c.invalidURL(op, err)
		}
		resources = append(resources, Resource{
			ID:          e.Text(),
			Type:        e.SelectAttrValue("type", ""),
			ContentType: e.SelectAttrValue("content-type", ""),
			Size:        size,
		})
	}
	return resources, nil
}

// resourceIDs returns the set of ids stored in db.
func (c *Client) resourceIDs(ctx context.Context, op, db string) (map[string]struct{}, error) {
	resources, err := c.listResources(ctx, op, db)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		ids[r.ID] = struct{}{}
	}
	return ids, nil
}

// AddDocument stores doc under id, generating an id when it is empty, and
// returns the id used. It fails with ErrOverwrite if the id is already
// listed in the database. The check and the store are separate requests and
// race with concurrent writers.
func (c *Client) AddDocument(ctx context.Context, doc *etree.Document, id, database string) (string, error) {
	const op = "add_document"
	if _, err := c.activeSession(op); err != nil {
		return "", err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = NewDocumentID()
	}

	existing, err := c.resourceIDs(ctx, op, db)
	if err != nil {
		return "", err
	}
	if _, taken := existing[id]; taken {
		return "", c.fail(&Error{
			Kind:    KindOverwrite,
			Op:      op,
			Message: fmt.Sprintf("document %q already exists in database %q", id, db),
		})
	}

	if err := c.putDocument(ctx, op, db, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) putDocument(ctx context.Context, op, db, id string, doc *etree.Document) error {
	s, err := c.activeSession(op)
	if err != nil {
		return err
	}
	body, err := serialize(doc)
	if err != nil {
		return c.fail(&Error{
			Kind:    KindRequest,
			Op:      op,
			Message: fmt.Sprintf("failed to serialize document %q", id),
			Cause:   err,
		})
	}

	_, err = c.exchange(ctx, s, http.MethodPut, c.resourceURL(db, id), body, policy{
		op:       op,
		notFound: c.databaseCheck(op, db),
	})
	if err != nil {
		return err
	}
	c.logger.Info().Str("database", db).Str("document_id", id).Msg("Stored document")
	return nil
}

// GetDocument fetches a document. A database that holds no resource under id
// yields a DocumentLookup with Found false and a nil error.
func (c *Client) GetDocument(ctx context.Context, id, database string) (DocumentLookup, error) {
	const op = "get_document"
	s, err := c.activeSession(op)
	if err != nil {
		return DocumentLookup{}, err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return DocumentLookup{}, err
	}
	if id == "" {
		return DocumentLookup{}, c.fail(&Error{Kind: KindRequest, Op: op, Message: "missing document id"})
	}

	payload, err := c.exchange(ctx, s, http.MethodGet, c.resourceURL(db, id), nil, policy{
		op:       op,
		notFound: c.databaseCheck(op, db),
	})
	if err != nil {
		return DocumentLookup{}, err
	}

	doc, err := parseXML(payload)
	if err != nil {
		return DocumentLookup{}, c.fail(&Error{
			Kind:    KindRequest,
			Op:      op,
			Message: fmt.Sprintf("failed to parse document %q", id),
			Cause:   err,
		})
	}

	root := doc.Root()
	if isRestElement(root, "database") && root.SelectAttrValue("resources", "") == "0" {
		c.logger.Debug().Str("database", db).Str("document_id", id).Msg("Document not found")
		return DocumentLookup{ID: id}, nil
	}
	return DocumentLookup{ID: id, Document: doc, Found: true}, nil
}

// GetDocuments fetches every document of a database, keyed by id.
func (c *Client) GetDocuments(ctx context.Context, database string) (map[string]DocumentLookup, error) {
	const op = "get_documents"
	if _, err := c.activeSession(op); err != nil {
		return nil, err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return nil, err
	}

	resources, err := c.listResources(ctx, op, db)
	if err != nil {
		return nil, err
	}

	docs := make(map[string]DocumentLookup, len(resources))
	for _, r := range resources {
		lookup, err := c.GetDocument(ctx, r.ID, db)
		if err != nil {
			return nil, err
		}
		docs[r.ID] = lookup
	}
	return docs, nil
}

// DeleteDocument removes a document from a database.
func (c *Client) DeleteDocument(ctx context.Context, id, database string) error {
	const op = "delete_document"
	if _, err := c.activeSession(op); err != nil {
		return err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return err
	}
	if id == "" {
		return c.fail(&Error{Kind: KindRequest, Op: op, Message: "missing document id"})
	}
	return c.deleteDocument(ctx, op, db, id)
}

func (c *Client) deleteDocument(ctx context.Context, op, db, id string) error {
	s, err := c.activeSession(op)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, s, http.MethodDelete, c.resourceURL(db, id), nil, policy{
		op:       op,
		notFound: c.databaseCheck(op, db),
	})
	if err != nil {
		return err
	}
	c.logger.Info().Str("database", db).Str("document_id", id).Msg("Deleted document")
	return nil
}
