// Package sqlstore implements the remote store contract directly against
// PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/remote"
)

var (
	ErrUnfiltered = errors.New("update and delete require at least one filter")
	ErrEmptyPatch = errors.New("update patch is empty")
	ErrNoRowID    = errors.New("rows must carry an id to be returned")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store runs remote store operations as SQL statements built with ent's
// dialect-aware builder.
type Store struct {
	db       *sqlx.DB
	dialect  string
	defaults map[string]map[string]func() any
	log      *zap.Logger
}

var _ remote.Store = (*Store)(nil)

func New(db *database.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:       db.X,
		dialect:  db.Dialect,
		defaults: database.ColumnDefaults,
		log:      log,
	}
}

func (s *Store) Select(ctx context.Context, q remote.Query, dest any) error {
	query, args, err := s.selectQuery(q)
	if err != nil {
		return err
	}
	s.log.Debug("select", zap.String("collection", q.Collection), zap.String("sql", query))

	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return wrap("select "+q.Collection, err)
	}
	return nil
}

func (s *Store) selectQuery(q remote.Query) (string, []any, error) {
	if err := checkIdent(q.Collection); err != nil {
		return "", nil, err
	}

	for _, c := range q.Columns {
		if err := checkIdent(c); err != nil {
			return "", nil, err
		}
	}

	// No columns selects every column.
	selector := sql.Dialect(s.dialect).Select(q.Columns...).From(sql.Table(q.Collection))

	pred, err := predicate(q.Filters)
	if err != nil {
		return "", nil, err
	}
	if pred != nil {
		selector.Where(pred)
	}

	for _, o := range q.Order {
		if err := checkIdent(o.Column); err != nil {
			return "", nil, err
		}
		if o.Descending {
			selector.OrderBy(sql.Desc(o.Column))
		} else {
			selector.OrderBy(sql.Asc(o.Column))
		}
	}

	if q.Limit > 0 {
		selector.Limit(q.Limit)
	}

	query, args := selector.Query()
	return query, args, nil
}

func (s *Store) Insert(ctx context.Context, collection string, rows []remote.Record, dest any) error {
	return s.insert(ctx, collection, rows, "", dest)
}

// Upsert inserts rows with ON CONFLICT DO NOTHING. Rows whose id already
// existed before the statement are left out of dest.
func (s *Store) Upsert(ctx context.Context, collection string, rows []remote.Record, onConflict string, dest any) error {
	if err := checkIdent(onConflict); err != nil {
		return err
	}
	return s.insert(ctx, collection, rows, onConflict, dest)
}

func (s *Store) insert(ctx context.Context, collection string, rows []remote.Record, onConflict string, dest any) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	prepared := s.withDefaults(collection, rows)
	columns := columnsOf(prepared)
	for _, c := range columns {
		if err := checkIdent(c); err != nil {
			return err
		}
	}

	ids, err := rowIDs(prepared, dest != nil)
	if err != nil {
		return err
	}

	// Ids that already exist are excluded from the returned rows of an
	// upsert; the insert itself stays a single atomic statement.
	var existing []string
	if onConflict != "" && dest != nil {
		existing, err = s.existingIDs(ctx, collection, ids)
		if err != nil {
			return err
		}
	}

	builder := sql.Dialect(s.dialect).Insert(collection).Columns(columns...)
	for _, row := range prepared {
		values := make([]any, len(columns))
		for i, c := range columns {
			values[i] = columnValue(row[c])
		}
		builder.Values(values...)
	}
	if onConflict != "" {
		builder.OnConflict(sql.ConflictColumns(onConflict), sql.DoNothing())
	}

	query, args := builder.Query()
	s.log.Debug("insert", zap.String("collection", collection), zap.Int("rows", len(prepared)))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrap("insert "+collection, err)
	}

	if dest == nil {
		return nil
	}

	fresh := make([]any, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(existing, id.(string)) {
			fresh = append(fresh, id)
		}
	}
	return s.selectByIDs(ctx, collection, fresh, dest)
}

func (s *Store) Update(ctx context.Context, collection string, patch remote.Record, filters []remote.Filter, dest any) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	if len(patch) == 0 {
		return ErrEmptyPatch
	}
	pred, err := predicate(filters)
	if err != nil {
		return err
	}
	if pred == nil {
		return ErrUnfiltered
	}

	builder := sql.Dialect(s.dialect).Update(collection).Where(pred)
	for _, c := range sortedKeys(patch) {
		if err := checkIdent(c); err != nil {
			return err
		}
		if v := columnValue(patch[c]); v != nil {
			builder.Set(c, v)
		} else {
			builder.SetNull(c)
		}
	}

	query, args := builder.Query()
	s.log.Debug("update", zap.String("collection", collection), zap.Strings("columns", sortedKeys(patch)))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrap("update "+collection, err)
	}

	if dest == nil {
		return nil
	}
	return s.Select(ctx, remote.Query{Collection: collection, Filters: filters}, dest)
}

func (s *Store) Delete(ctx context.Context, collection string, filters []remote.Filter) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	pred, err := predicate(filters)
	if err != nil {
		return err
	}
	if pred == nil {
		return ErrUnfiltered
	}

	query, args := sql.Dialect(s.dialect).Delete(collection).Where(pred).Query()
	s.log.Debug("delete", zap.String("collection", collection))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrap("delete "+collection, err)
	}
	return nil
}

func (s *Store) selectByIDs(ctx context.Context, collection string, ids []any, dest any) error {
	query, args := sql.Dialect(s.dialect).
		Select().
		From(sql.Table(collection)).
		Where(sql.In("id", ids...)).
		Query()

	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return wrap("select "+collection, err)
	}
	return nil
}

func (s *Store) existingIDs(ctx context.Context, collection string, ids []any) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := sql.Dialect(s.dialect).
		Select("id").
		From(sql.Table(collection)).
		Where(sql.In("id", ids...)).
		Query()

	var existing []string
	if err := s.db.SelectContext(ctx, &existing, query, args...); err != nil {
		return nil, wrap("select "+collection, err)
	}
	return existing, nil
}

// withDefaults copies rows and fills generated columns they omit.
func (s *Store) withDefaults(collection string, rows []remote.Record) []remote.Record {
	gens := s.defaults[collection]
	out := make([]remote.Record, len(rows))
	for i, row := range rows {
		rec := make(remote.Record, len(row)+len(gens))
		for k, v := range row {
			rec[k] = v
		}
		for col, gen := range gens {
			if v, ok := rec[col]; !ok || v == nil {
				rec[col] = gen()
			}
		}
		out[i] = rec
	}
	return out
}

func predicate(filters []remote.Filter) (*sql.Predicate, error) {
	preds := make([]*sql.Predicate, 0, len(filters))
	for _, f := range filters {
		if err := checkIdent(f.Column); err != nil {
			return nil, err
		}
		switch f.Op {
		case remote.OpEq:
			preds = append(preds, sql.EQ(f.Column, columnValue(f.Value)))
		case remote.OpNeq:
			preds = append(preds, sql.NEQ(f.Column, columnValue(f.Value)))
		case remote.OpILike:
			substr, ok := f.Value.(string)
			if !ok {
				return nil, fmt.Errorf("ilike on %s needs a string, got %T", f.Column, f.Value)
			}
			preds = append(preds, sql.ContainsFold(f.Column, substr))
		case remote.OpIsNull:
			preds = append(preds, sql.IsNull(f.Column))
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return sql.And(preds...), nil
	}
}

// columnValue unwraps pointers and named string types into driver values.
func columnValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case string, int, int64, float64, bool, []byte:
		return v
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return columnValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	}
	return v
}

func columnsOf(rows []remote.Record) []string {
	var columns []string
	for _, row := range rows {
		for c := range row {
			if !slices.Contains(columns, c) {
				columns = append(columns, c)
			}
		}
	}
	slices.Sort(columns)
	return columns
}

func rowIDs(rows []remote.Record, required bool) ([]any, error) {
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		id, ok := columnValue(row["id"]).(string)
		if !ok || id == "" {
			if required {
				return nil, ErrNoRowID
			}
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func sortedKeys(rec remote.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
