package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pathsplit/pathsplit/internal/templates"
)

// Segments and template tests are stored as JSON bodies. Only the columns
// used for ordering are broken out.

// SaveSegment inserts seg or replaces the stored segment with the same id.
func (s *SQLiteStore) SaveSegment(ctx context.Context, seg templates.Segment) error {
	body, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("failed to marshal segment: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO segments (id, priority, body) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET priority = excluded.priority, body = excluded.body`,
		seg.ID, seg.Priority, string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to save segment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSegment(ctx context.Context, id string) (*templates.Segment, error) {
	var seg templates.Segment
	if err := s.getBody(ctx, `SELECT body FROM segments WHERE id = ?`, id, &seg); err != nil {
		return nil, err
	}
	return &seg, nil
}

// ListSegments returns every segment, highest priority first.
func (s *SQLiteStore) ListSegments(ctx context.Context) ([]templates.Segment, error) {
	var out []templates.Segment
	err := s.listBodies(ctx, `SELECT body FROM segments ORDER BY priority DESC, id`, func(body []byte) error {
		var seg templates.Segment
		if err := json.Unmarshal(body, &seg); err != nil {
			return fmt.Errorf("failed to unmarshal segment: %w", err)
		}
		out = append(out, seg)
		return nil
	})
	return out, err
}

func (s *SQLiteStore) DeleteSegment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	return requireRow(result)
}

// SaveTemplateTest inserts t or replaces the stored test with the same id.
func (s *SQLiteStore) SaveTemplateTest(ctx context.Context, t templates.TemplateTest) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template test: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO template_tests (id, status, start_ms, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, start_ms = excluded.start_ms, body = excluded.body`,
		t.ID, string(t.Status), t.StartDate.UnixMilli(), string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to save template test: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTemplateTest(ctx context.Context, id string) (*templates.TemplateTest, error) {
	var t templates.TemplateTest
	if err := s.getBody(ctx, `SELECT body FROM template_tests WHERE id = ?`, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplateTests returns every template test, most recently started first.
func (s *SQLiteStore) ListTemplateTests(ctx context.Context) ([]templates.TemplateTest, error) {
	var out []templates.TemplateTest
	err := s.listBodies(ctx, `SELECT body FROM template_tests ORDER BY start_ms DESC, id`, func(body []byte) error {
		var t templates.TemplateTest
		if err := json.Unmarshal(body, &t); err != nil {
			return fmt.Errorf("failed to unmarshal template test: %w", err)
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

func (s *SQLiteStore) DeleteTemplateTest(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM template_tests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template test: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteStore) getBody(ctx context.Context, query, id string, dst any) error {
	var body string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) listBodies(ctx context.Context, query string, each func([]byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return fmt.Errorf("failed to scan: %w", err)
		}
		if err := each([]byte(body)); err != nil {
			return err
		}
	}
	return rows.Err()
}
