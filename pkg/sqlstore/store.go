// Package sqlstore exposes SQL Server statements and stored procedures as a
// telq operation.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/rs/zerolog"
)

// DefaultName is the operation name registered when Options.Name is empty.
const DefaultName = "dbSql"

// QueryTypeStoredProcedure marks a request whose Query is a procedure name.
const QueryTypeStoredProcedure = "storedProcedure"

// StatusExecuted is reported for statements that return no rows.
const StatusExecuted = "Statement executed successfully"

var (
	// ErrNoServer is returned when the request names no source.
	ErrNoServer = errors.New("No server supplied")

	// ErrConnect wraps failures to open a connection.
	ErrConnect = errors.New("Error connecting")

	// ErrExecution wraps failures while running the statement.
	ErrExecution = errors.New("Error with sql execution")
)

// Param is a named statement parameter. Type is one of the names accepted
// by bindValue; empty passes Value through unchanged.
type Param struct {
	Name  string
	Type  string
	Value any
}

// Request is the argument of the sqlstore operation.
type Request struct {
	// Source is the connection string
	Source string

	// QueryType is "" for a plain statement or "storedProcedure"
	QueryType string

	// Query is the statement text or the procedure name
	Query string

	Params []Param
}

// Opener opens a database handle for a connection string.
type Opener func(ctx context.Context, source string) (*sql.DB, error)

// Store runs requests and keeps one *sql.DB per source.
type Store struct {
	open   Opener
	logger zerolog.Logger

	mu    sync.Mutex
	pools map[string]*sql.DB
}

// NewStore creates a store. A nil opener defaults to OpenSQLServer.
func NewStore(open Opener, logger zerolog.Logger) *Store {
	if open == nil {
		open = OpenSQLServer
	}
	return &Store{
		open:   open,
		logger: logger,
		pools:  make(map[string]*sql.DB),
	}
}

// Exec runs req. Statements that return rows yield []map[string]any keyed
// by column name; anything else yields {"status": StatusExecuted}.
func (s *Store) Exec(ctx context.Context, req Request) (any, error) {
	if req.Source == "" {
		return nil, ErrNoServer
	}

	db, err := s.db(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	if req.QueryType == QueryTypeStoredProcedure && !isProcedureName(req.Query) {
		return nil, fmt.Errorf("%w: invalid procedure name %q", ErrExecution, req.Query)
	}

	args, err := bindParams(req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	s.logger.Debug().
		Str("query_type", queryTypeLabel(req.QueryType)).
		Int("params", len(args)).
		Msg("Executing sql statement")

	rows, err := db.QueryContext(ctx, req.Query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer rows.Close()

	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	if len(result) == 0 {
		return map[string]any{"status": StatusExecuted}, nil
	}
	return result, nil
}

// Close closes every pooled handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for source, db := range s.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.pools, source)
	}
	return errors.Join(errs...)
}

func (s *Store) db(ctx context.Context, source string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.pools[source]; ok {
		return db, nil
	}

	db, err := s.open(ctx, source)
	if err != nil {
		return nil, err
	}
	s.pools[source] = db
	return db, nil
}

func collectRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// isProcedureName accepts optionally qualified identifiers such as
// db.Rules.InsertIntoRulesTables.
func isProcedureName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n;")
}

func queryTypeLabel(queryType string) string {
	if queryType == "" {
		return "statement"
	}
	return queryType
}

// Options configures the plugin.
type Options struct {
	// Name of the registered operation (default "dbSql")
	Name string

	// Opener opens connections (default OpenSQLServer)
	Opener Opener
}

// Plugin registers the sqlstore operation on c and closes the pooled
// connections when c is closed. opts may be nil, Options or *Options.
func Plugin(c *telq.Client, opts any) error {
	var o Options
	switch v := opts.(type) {
	case nil:
	case Options:
		o = v
	case *Options:
		if v != nil {
			o = *v
		}
	default:
		return fmt.Errorf("sqlstore: unexpected plugin options %T", opts)
	}

	if o.Name == "" {
		o.Name = DefaultName
	}

	logger := c.Logger().With().Str("plugin", "sqlstore").Str("operation", o.Name).Logger()
	store := NewStore(o.Opener, logger)

	if err := c.Register(o.Name, func(ctx context.Context, args any) (any, error) {
		switch v := args.(type) {
		case Request:
			return store.Exec(ctx, v)
		case *Request:
			if v == nil {
				return nil, ErrNoServer
			}
			return store.Exec(ctx, *v)
		default:
			return nil, fmt.Errorf("%w: want sqlstore.Request, got %T", telq.ErrInvalidArgs, args)
		}
	}); err != nil {
		return err
	}

	c.OnClose(store.Close)
	return nil
}
