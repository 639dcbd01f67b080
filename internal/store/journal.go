package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/vecgrid/internal/model"
)

// WriteRecord is one journaled write. Values are canonical JSON text.
type WriteRecord struct {
	Seq      int64  `json:"seq"`
	Path     string `json:"path"`
	Indexes  []int  `json:"indexes,omitempty"`
	Value    string `json:"value"`
	OldValue string `json:"old_value"`
	Sender   uint64 `json:"sender"`
	Depth    int    `json:"depth"`
}

// WriteFilter narrows ReadWrites. Zero fields match everything.
type WriteFilter struct {
	// Path matches the variable path exactly, or every path below it when
	// it ends in "/".
	Path string

	// AfterSeq returns only writes with seq > AfterSeq.
	AfterSeq int64

	// Limit caps the number of records; 0 means no limit.
	Limit int
}

// Append journals a committed write. It implements model.Journal.
// Uses ON CONFLICT(seq) DO NOTHING, so appending the same write twice is
// harmless.
func (s *Store) Append(ctx context.Context, n model.Notification) error {
	value, err := marshalValue(n.New)
	if err != nil {
		return fmt.Errorf("append write %d: %w", n.Seq, err)
	}
	old, err := marshalValue(n.Old)
	if err != nil {
		return fmt.Errorf("append write %d: %w", n.Seq, err)
	}
	indexes, err := marshalIndexes(n.Indexes)
	if err != nil {
		return fmt.Errorf("append write %d: %w", n.Seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO writes (seq, path, indexes, value, old_value, sender, depth)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		n.Seq,
		n.Path,
		indexes,
		value,
		old,
		int64(n.Sender),
		n.Depth,
	)
	if err != nil {
		return fmt.Errorf("append write %d: %w", n.Seq, err)
	}
	return nil
}

// ReadWrites returns journaled writes in seq order.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadWrites(ctx context.Context, f WriteFilter) ([]WriteRecord, error) {
	var (
		where []string
		args  []any
	)
	switch {
	case f.Path == "":
	case strings.HasSuffix(f.Path, "/"):
		// Byte-wise range: '0' follows '/', so every path below the
		// prefix sorts inside it. This also uses idx_writes_path.
		where = append(where, "path >= ? AND path < ?")
		args = append(args, f.Path, strings.TrimSuffix(f.Path, "/")+"0")
	default:
		where = append(where, "path = ?")
		args = append(args, f.Path)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := "SELECT seq, path, indexes, value, old_value, sender, depth FROM writes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query writes: %w", err)
	}
	defer rows.Close()

	records := []WriteRecord{}
	for rows.Next() {
		rec, err := scanWrite(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate writes: %w", err)
	}
	return records, nil
}

func scanWrite(rows *sql.Rows) (WriteRecord, error) {
	var (
		rec     WriteRecord
		indexes string
		sender  int64
	)
	if err := rows.Scan(&rec.Seq, &rec.Path, &indexes, &rec.Value, &rec.OldValue, &sender, &rec.Depth); err != nil {
		return WriteRecord{}, fmt.Errorf("scan write: %w", err)
	}
	idx, err := unmarshalIndexes(indexes)
	if err != nil {
		return WriteRecord{}, fmt.Errorf("scan write %d: %w", rec.Seq, err)
	}
	rec.Indexes = idx
	rec.Sender = uint64(sender)
	return rec, nil
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
// A new run resumes its clock after it with model.NewLogicalClockAt.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM writes").Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

// CountWrites returns the number of journaled writes.
func (s *Store) CountWrites(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM writes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count writes: %w", err)
	}
	return n, nil
}
