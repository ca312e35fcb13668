// Package archive exports conversations to object storage as JSON Lines.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/nflow-health/nflow/internal/domain/conversation"
	"github.com/nflow-health/nflow/internal/pkg/logger"
	"github.com/nflow-health/nflow/internal/pkg/metrics"
)

const defaultPageSize = 500

// Source pages through conversations in (created_at, id) order
type Source interface {
	ListSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]*conversation.Conversation, error)
}

// ObjectPutter stores an object under key
type ObjectPutter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Result describes one export run
type Result struct {
	Key   string    `json:"key"`
	Count int       `json:"count"`
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Exporter writes conversation batches to an ObjectPutter
type Exporter struct {
	source   Source
	putter   ObjectPutter
	prefix   string
	pageSize int
	logger   *logger.Logger
	now      func() time.Time
}

// NewExporter creates an exporter writing under prefix
func NewExporter(source Source, putter ObjectPutter, prefix string, log *logger.Logger) *Exporter {
	return &Exporter{
		source:   source,
		putter:   putter,
		prefix:   prefix,
		pageSize: defaultPageSize,
		logger:   log,
		now:      time.Now,
	}
}

// Export uploads every conversation created at or after since. Nothing is
// uploaded when there are no conversations; the returned key is then empty.
func (e *Exporter) Export(ctx context.Context, since time.Time) (*Result, error) {
	until := e.now().UTC()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	// created_at has second resolution, so the id breaks ties
	cursor, afterID := since, int64(0)
	count := 0
	for {
		batch, err := e.source.ListSince(ctx, cursor, afterID, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list conversations since %s: %w", cursor.Format(time.RFC3339), err)
		}

		for _, c := range batch {
			if err := enc.Encode(c); err != nil {
				return nil, fmt.Errorf("encode conversation %d: %w", c.ID, err)
			}
			cursor, afterID = c.CreatedAt, c.ID
			count++
		}

		if len(batch) < e.pageSize {
			break
		}
	}

	result := &Result{Count: count, Since: since, Until: until}
	if result.Count == 0 {
		e.logger.With("since", since).Info("No conversations to archive")
		return result, nil
	}

	result.Key = e.objectKey(until)
	if err := e.putter.Put(ctx, result.Key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return nil, fmt.Errorf("upload %s: %w", result.Key, err)
	}

	metrics.AddArchivedConversations(result.Count)
	e.logger.WithFields(map[string]interface{}{
		"key":   result.Key,
		"count": result.Count,
	}).Info("Conversations archived")

	return result, nil
}

func (e *Exporter) objectKey(t time.Time) string {
	return path.Join(e.prefix, t.Format("2006/01/02"), fmt.Sprintf("%d.jsonl", t.Unix()))
}
