package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/dataimport/internal/core"
)

// Querier is the subset of *pgxpool.Pool used by SQLSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SQLSource reads the rows returned by a SQL query. The query descriptor is
// the statement itself; columns are addressed by result column name or
// position.
type SQLSource struct {
	pool Querier
}

// NewSQLSource builds a SQLSource over env.Pool.
func NewSQLSource(_ Settings, env Env) (*SQLSource, error) {
	if env.Pool == nil {
		return nil, fmt.Errorf("sql source requires a database connection")
	}
	return &SQLSource{pool: env.Pool}, nil
}

// Fetch implements core.DataSource.
func (s *SQLSource) Fetch(ctx context.Context, query string) ([]core.RowRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.Unavailable(query, "empty source query", nil)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, core.Unavailable(query, "run query", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, fd := range fields {
		header[i] = fd.Name
	}
	index := MakeHeaderIndex(header)

	var out []core.RowRecord
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, core.Unavailable(query, "scan row", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = FormatValue(v)
		}
		out = append(out, NewRecord(cells, header, index))
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable(query, "read rows", err)
	}
	return out, nil
}

// FormatValue renders a decoded database value as text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		if !val.Valid || val.NaN || val.Int == nil {
			return ""
		}
		return decimal.NewFromBigInt(val.Int, val.Exp).String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
