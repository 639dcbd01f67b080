// Package redis publishes committed writes to a Redis stream so other
// processes can tail grid activity.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	backend "github.com/redis/go-redis/v9"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "vecgrid:journal"

// DefaultMaxLen caps the stream length (approximately).
const DefaultMaxLen = 10000

// StreamJournal implements model.Journal with XADD.
type StreamJournal struct {
	client *backend.Client
	stream string
	maxLen int64
}

// Option configures a StreamJournal.
type Option func(*StreamJournal)

// WithStream sets the stream key.
func WithStream(stream string) Option {
	return func(j *StreamJournal) {
		if stream != "" {
			j.stream = stream
		}
	}
}

// WithMaxLen sets the approximate stream cap. Zero disables trimming.
func WithMaxLen(n int64) Option {
	return func(j *StreamJournal) {
		j.maxLen = n
	}
}

// New connects to the Redis server at addr.
func New(addr string, opts ...Option) *StreamJournal {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *StreamJournal {
	j := &StreamJournal{
		client: client,
		stream: DefaultStream,
		maxLen: DefaultMaxLen,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Stream returns the stream key.
func (j *StreamJournal) Stream() string { return j.stream }

// Ping checks the connection.
func (j *StreamJournal) Ping(ctx context.Context) error {
	if err := j.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Append implements model.Journal. Values are canonical JSON.
func (j *StreamJournal) Append(ctx context.Context, n model.Notification) error {
	value, err := ir.MarshalCanonical(n.New)
	if err != nil {
		return fmt.Errorf("redis append %d: %w", n.Seq, err)
	}
	indexes := "[]"
	if len(n.Indexes) > 0 {
		data, err := ir.MarshalCanonical(n.Indexes)
		if err != nil {
			return fmt.Errorf("redis append %d: %w", n.Seq, err)
		}
		indexes = string(data)
	}

	args := &backend.XAddArgs{
		Stream: j.stream,
		Values: map[string]any{
			"seq":     strconv.FormatInt(n.Seq, 10),
			"path":    n.Path,
			"indexes": indexes,
			"value":   string(value),
			"sender":  strconv.FormatUint(uint64(n.Sender), 10),
			"depth":   strconv.Itoa(n.Depth),
		},
	}
	if j.maxLen > 0 {
		args.MaxLen = j.maxLen
		args.Approx = true
	}

	if err := j.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis append %d: %w", n.Seq, err)
	}
	return nil
}

// Entry is one stream entry as read back by Read.
type Entry struct {
	ID      string
	Seq     int64
	Path    string
	Indexes string
	Value   string
	Sender  uint64
	Depth   int
}

// Read returns up to count entries after the given stream id ("0" or ""
// for the beginning).
func (j *StreamJournal) Read(ctx context.Context, after string, count int64) ([]Entry, error) {
	if after == "" {
		after = "0"
	}
	streams, err := j.client.XRead(ctx, &backend.XReadArgs{
		Streams: []string{j.stream, after},
		Count:   count,
		Block:   -1,
	}).Result()
	if errors.Is(err, backend.Nil) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis read: %w", err)
	}

	entries := []Entry{}
	for _, st := range streams {
		for _, m := range st.Messages {
			e, err := parseEntry(m)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func parseEntry(m backend.XMessage) (Entry, error) {
	field := func(name string) string {
		s, _ := m.Values[name].(string)
		return s
	}

	e := Entry{
		ID:      m.ID,
		Path:    field("path"),
		Indexes: field("indexes"),
		Value:   field("value"),
	}
	var err error
	if e.Seq, err = strconv.ParseInt(field("seq"), 10, 64); err != nil {
		return Entry{}, fmt.Errorf("redis entry %s: seq: %w", m.ID, err)
	}
	if e.Sender, err = strconv.ParseUint(field("sender"), 10, 64); err != nil {
		return Entry{}, fmt.Errorf("redis entry %s: sender: %w", m.ID, err)
	}
	if e.Depth, err = strconv.Atoi(field("depth")); err != nil {
		return Entry{}, fmt.Errorf("redis entry %s: depth: %w", m.ID, err)
	}
	return e, nil
}

// Close closes the client.
func (j *StreamJournal) Close() error {
	return j.client.Close()
}
