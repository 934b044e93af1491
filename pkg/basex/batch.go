package basex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/multierr"
)

// BatchResult reports the outcome of a batch insert.
type BatchResult struct {
	Stored     []string
	Duplicates []string
}

type batchEntry struct {
	id  string
	doc *etree.Document
}

// AddDocuments stores docs under freshly generated ids. See AddDocumentsWithIDs.
func (c *Client) AddDocuments(ctx context.Context, docs []*etree.Document, database string, skipDuplicated bool) (BatchResult, error) {
	entries := make([]batchEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, batchEntry{id: NewDocumentID(), doc: doc})
	}
	return c.addBatch(ctx, entries, database, skipDuplicated)
}

// AddDocumentsWithIDs stores docs under their map keys, in key order.
//
// If skipDuplicated is false and any id is already stored, it fails with
// ErrOverwrite before writing anything. If true, those ids are left out and
// reported in BatchResult.Duplicates.
//
// When a store fails, every document stored by this call is deleted again and
// the store error is returned, combined with any rollback failures. The
// duplicate check races with concurrent writers.
func (c *Client) AddDocumentsWithIDs(ctx context.Context, docs map[string]*etree.Document, database string, skipDuplicated bool) (BatchResult, error) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]batchEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, batchEntry{id: id, doc: docs[id]})
	}
	return c.addBatch(ctx, entries, database, skipDuplicated)
}

func (c *Client) addBatch(ctx context.Context, entries []batchEntry, database string, skipDuplicated bool) (BatchResult, error) {
	const op = "add_documents"
	if _, err := c.activeSession(op); err != nil {
		return BatchResult{}, err
	}
	db, err := c.resolveDatabase(op, database)
	if err != nil {
		return BatchResult{}, err
	}

	existing, err := c.resourceIDs(ctx, op, db)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	pending := make([]batchEntry, 0, len(entries))
	for _, e := range entries {
		if _, taken := existing[e.id]; taken {
			result.Duplicates = append(result.Duplicates, e.id)
			continue
		}
		pending = append(pending, e)
	}

	if len(result.Duplicates) > 0 && !skipDuplicated {
		return BatchResult{}, c.fail(&Error{
			Kind: KindOverwrite,
			Op:   op,
			Message: fmt.Sprintf("documents %s already exist in database %q",
				strings.Join(result.Duplicates, ", "), db),
		})
	}

	ledger := &rollback{client: c, op: op, database: db}
	for _, e := range pending {
		if err := c.putDocument(ctx, op, db, e.id, e.doc); err != nil {
			return BatchResult{}, multierr.Append(err, ledger.undo(ctx))
		}
		ledger.commit(e.id)
	}

	result.Stored = ledger.ids
	c.logger.Info().
		Str("database", db).
		Int("stored", len(result.Stored)).
		Int("duplicates", len(result.Duplicates)).
		Msg("Completed batch insert")
	return result, nil
}

// rollback is the ordered list of ids a batch has stored so far.
type rollback struct {
	client   *Client
	op       string
	database string
	ids      []string
}

func (r *rollback) commit(id string) {
	r.ids = append(r.ids, id)
}

// undo deletes every committed id, attempting each one regardless of earlier
// failures, and returns the collected failures. Cancellation of ctx does not
// stop it.
func (r *rollback) undo(ctx context.Context) error {
	if len(r.ids) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	r.client.logger.Warn().
		Str("database", r.database).
		Int("documents", len(r.ids)).
		Msg("Rolling back batch insert")

	var errs error
	failed := 0
	for _, id := range r.ids {
		if err := r.client.deleteDocument(ctx, r.op, r.database, id); err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("rollback of document %q: %w", id, err))
		}
	}
	r.client.observer.ObserveRollback(len(r.ids)-failed, failed)
	return errs
}
