package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/reportengine/internal/models"
)

// MySQLAdapter runs queries over database/sql with the mysql driver. A
// connection is opened per run; report queries are long and infrequent, so
// a shared pool buys nothing and keeps idle connections out of the source.
type MySQLAdapter struct {
	// open is swappable for tests.
	open func(dsn string) (*sql.DB, error)
}

func NewMySQLAdapter() *MySQLAdapter {
	return &MySQLAdapter{
		open: func(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) },
	}
}

func (a *MySQLAdapter) Run(ctx context.Context, ds *models.ReportDatasource, query string, timeout time.Duration, maxRows int) (*Result, error) {
	db, err := a.open(ds.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer db.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, classify(ctx, ErrConnection, err)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(ctx, ErrQuery, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	result := &Result{Columns: columns}
	raw := make([]sql.RawBytes, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		row := make([]string, len(columns))
		for i, v := range raw {
			if v != nil {
				row[i] = string(v)
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, ErrQuery, err)
	}

	return result, nil
}

func classify(ctx context.Context, kind error, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", kind, err)
}
