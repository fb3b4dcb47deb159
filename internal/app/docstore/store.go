/*
Package docstore is the document database of the backend: JSON documents grouped in
collection paths, owned by exactly one user, stored in a PostgreSQL JSONB table.

Every committed write is published as a Change so live subscriptions can refresh.
*/
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"schoolmaps/internal/app/db"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/metrics"
	"schoolmaps/internal/pkg/randx"
	"schoolmaps/internal/pkg/sanitize"
	"schoolmaps/internal/pkg/wire"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a DBTX that can open transactions, such as *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Change identifies a document touched by a committed write.
type Change struct {
	Collection string
	ID         string
	OwnerID    string
}

// Publisher receives committed changes.
type Publisher interface {
	Publish(changes ...Change)
}

// Store implements the document operations on behalf of an authenticated caller.
type Store struct {
	db        DB
	publisher Publisher
	sanitizer *sanitize.Sanitizer
	metrics   metrics.Recorder
	log       zerolog.Logger
}

func NewStore(database DB, publisher Publisher, sanitizer *sanitize.Sanitizer, rec metrics.Recorder) *Store {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Store{
		db:        database,
		publisher: publisher,
		sanitizer: sanitizer,
		metrics:   rec,
		log:       logx.Component("docstore"),
	}
}

func scanDocument(row pgx.Row) (wire.Document, error) {
	var d wire.Document
	err := row.Scan(&d.Collection, &d.ID, &d.OwnerID, &d.Data, &d.CreatedAt, &d.UpdatedAt)
	if d.Data == nil {
		d.Data = map[string]any{}
	}
	return d, err
}

// prepareData copies data, strips markup from text fields and stamps the owner.
func (s *Store) prepareData(p Path, uid string, data map[string]any) (string, error) {
	clean := maps.Clone(data)
	if clean == nil {
		clean = map[string]any{}
	}
	delete(clean, "id")
	s.sanitizer.Document(clean)

	if p.Kind != KindUsers {
		clean["ownerId"] = uid
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return "", errs.NewError(errs.ErrInvalidParams)
	}
	return string(raw), nil
}

func (s *Store) committed(changes ...Change) {
	counts := map[string]int{}
	for _, c := range changes {
		if p, err := ParsePath(c.Collection); err == nil {
			counts[p.Kind]++
		}
	}
	for kind, n := range counts {
		s.metrics.RecordDocumentWrites(kind, n)
	}
	if s.publisher != nil && len(changes) > 0 {
		s.publisher.Publish(changes...)
	}
}

// Get reads one document. A missing document is reported with exists=false.
func (s *Store) Get(ctx context.Context, uid, collection, id string) (wire.Document, bool, error) {
	if _, err := authorizeDoc(collection, id, uid); err != nil {
		return wire.Document{}, false, err
	}

	doc, err := scanDocument(s.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE collection = $1 AND id = $2 AND owner_id = $3`,
		collection, id, uid))
	if err != nil {
		if db.IsNoRows(err) {
			return wire.Document{}, false, nil
		}
		return wire.Document{}, false, errs.NewError(errs.ErrUnknown, err)
	}

	return doc, true, nil
}

// Merge creates the document or shallow-merges data into it.
func (s *Store) Merge(ctx context.Context, uid, collection, id string, data map[string]any) (wire.Document, error) {
	doc, err := s.merge(ctx, s.db, uid, collection, id, data)
	if err != nil {
		return wire.Document{}, err
	}
	s.committed(Change{Collection: doc.Collection, ID: doc.ID, OwnerID: doc.OwnerID})
	return doc, nil
}

func (s *Store) merge(ctx context.Context, q DBTX, uid, collection, id string, data map[string]any) (wire.Document, error) {
	p, err := authorizeDoc(collection, id, uid)
	if err != nil {
		return wire.Document{}, err
	}
	raw, err := s.prepareData(p, uid, data)
	if err != nil {
		return wire.Document{}, err
	}

	doc, err := scanDocument(q.QueryRow(ctx,
		`INSERT INTO documents (collection, id, owner_id, data)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE
		   SET data = documents.data || EXCLUDED.data, updated_at = NOW()
		   WHERE documents.owner_id = EXCLUDED.owner_id
		 RETURNING `+documentColumns,
		collection, id, uid, raw))
	if err != nil {
		if db.IsNoRows(err) {
			return wire.Document{}, errs.NewError(errs.ErrDocumentForbidden)
		}
		return wire.Document{}, errs.NewError(errs.ErrUnknown, err)
	}
	return doc, nil
}

// Create stores a new document under a generated id.
func (s *Store) Create(ctx context.Context, uid, collection string, data map[string]any) (wire.Document, error) {
	p, err := Authorize(collection, uid)
	if err != nil {
		return wire.Document{}, err
	}
	if p.Kind == KindUsers {
		// profiles are keyed by uid and written with Merge
		return wire.Document{}, errs.NewError(errs.ErrCollectionInvalid)
	}

	doc, err := s.set(ctx, s.db, p, uid, randx.DocumentID(), data)
	if err != nil {
		return wire.Document{}, err
	}
	s.committed(Change{Collection: doc.Collection, ID: doc.ID, OwnerID: doc.OwnerID})
	return doc, nil
}

func (s *Store) set(ctx context.Context, q DBTX, p Path, uid, id string, data map[string]any) (wire.Document, error) {
	raw, err := s.prepareData(p, uid, data)
	if err != nil {
		return wire.Document{}, err
	}

	doc, err := scanDocument(q.QueryRow(ctx,
		`INSERT INTO documents (collection, id, owner_id, data)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE
		   SET data = EXCLUDED.data, updated_at = NOW()
		   WHERE documents.owner_id = EXCLUDED.owner_id
		 RETURNING `+documentColumns,
		p.Collection, id, uid, raw))
	if err != nil {
		if db.IsNoRows(err) {
			return wire.Document{}, errs.NewError(errs.ErrDocumentForbidden)
		}
		return wire.Document{}, errs.NewError(errs.ErrUnknown, err)
	}
	return doc, nil
}

// Update merges data into an existing document.
func (s *Store) Update(ctx context.Context, uid, collection, id string, data map[string]any) (wire.Document, error) {
	doc, err := s.update(ctx, s.db, uid, collection, id, data)
	if err != nil {
		return wire.Document{}, err
	}
	s.committed(Change{Collection: doc.Collection, ID: doc.ID, OwnerID: doc.OwnerID})
	return doc, nil
}

func (s *Store) update(ctx context.Context, q DBTX, uid, collection, id string, data map[string]any) (wire.Document, error) {
	p, err := authorizeDoc(collection, id, uid)
	if err != nil {
		return wire.Document{}, err
	}
	raw, err := s.prepareData(p, uid, data)
	if err != nil {
		return wire.Document{}, err
	}

	doc, err := scanDocument(q.QueryRow(ctx,
		`UPDATE documents SET data = data || $4::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2 AND owner_id = $3
		 RETURNING `+documentColumns,
		collection, id, uid, raw))
	if err != nil {
		if db.IsNoRows(err) {
			return wire.Document{}, errs.NewError(errs.ErrDocumentNotFound)
		}
		return wire.Document{}, errs.NewError(errs.ErrUnknown, err)
	}
	return doc, nil
}

// Delete removes a document. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, uid, collection, id string) error {
	if err := s.delete(ctx, s.db, uid, collection, id); err != nil {
		return err
	}
	s.committed(Change{Collection: collection, ID: id, OwnerID: uid})
	return nil
}

func (s *Store) delete(ctx context.Context, q DBTX, uid, collection, id string) error {
	if _, err := authorizeDoc(collection, id, uid); err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2 AND owner_id = $3`,
		collection, id, uid); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

func (s *Store) increment(ctx context.Context, q DBTX, uid, collection, id, field string, delta float64) error {
	if _, err := authorizeDoc(collection, id, uid); err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`UPDATE documents
		 SET data = jsonb_set(data, ARRAY[$4::text], to_jsonb(COALESCE((data ->> $4::text)::numeric, 0) + $5::numeric)),
		     updated_at = NOW()
		 WHERE collection = $1 AND id = $2 AND owner_id = $3`,
		collection, id, uid, field, delta)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrDocumentNotFound)
	}
	return nil
}

// Query lists the caller's documents matching q.
func (s *Store) Query(ctx context.Context, uid string, q wire.Query) ([]wire.Document, error) {
	if _, err := Authorize(q.Collection, uid); err != nil {
		return nil, err
	}

	sql, args, err := buildQuery(uid, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer rows.Close()

	docs := []wire.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return docs, nil
}

// Batch applies ops atomically and returns the document id of every op, in order.
func (s *Store) Batch(ctx context.Context, uid string, ops []wire.Op) ([]string, error) {
	if len(ops) == 0 {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.log.Error().Err(err).Msg("batch rollback failed")
		}
	}()

	ids := make([]string, len(ops))
	changes := make([]Change, 0, len(ops))

	for i, op := range ops {
		id, err := s.applyOp(ctx, tx, uid, op)
		if err != nil {
			s.log.Debug().Int("op", i).Str("kind", op.Kind).Err(err).Msg("batch op failed")
			return nil, err
		}
		ids[i] = id
		changes = append(changes, Change{Collection: op.Collection, ID: id, OwnerID: uid})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, fmt.Errorf("commit batch: %w", err))
	}

	s.committed(changes...)
	return ids, nil
}

func (s *Store) applyOp(ctx context.Context, tx DBTX, uid string, op wire.Op) (string, error) {
	switch op.Kind {
	case wire.OpSet:
		p, err := Authorize(op.Collection, uid)
		if err != nil {
			return "", err
		}
		id := op.ID
		if id == "" {
			if p.Kind == KindUsers {
				return "", errs.NewError(errs.ErrInvalidParams)
			}
			id = randx.DocumentID()
		}
		if _, err := authorizeDoc(op.Collection, id, uid); err != nil {
			return "", err
		}
		doc, err := s.set(ctx, tx, p, uid, id, op.Data)
		return doc.ID, err

	case wire.OpUpdate:
		doc, err := s.update(ctx, tx, uid, op.Collection, op.ID, op.Data)
		return doc.ID, err

	case wire.OpDelete:
		return op.ID, s.delete(ctx, tx, uid, op.Collection, op.ID)

	case wire.OpIncrement:
		if op.Field == "" {
			return "", errs.NewError(errs.ErrInvalidParams)
		}
		return op.ID, s.increment(ctx, tx, uid, op.Collection, op.ID, op.Field, op.Delta)
	}

	return "", errs.NewError(errs.ErrInvalidParams)
}
