package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
)

const mappingColumns = `entity_type, entity_id, course_remote_id, forum_remote_id, created_at, updated_at`

// UpsertMapping creates or replaces the mapping of an entity
func (s *Storage) UpsertMapping(ctx context.Context, m *models.EntityMapping) error {
	query := `
		INSERT INTO entity_mappings (` + mappingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			course_remote_id = excluded.course_remote_id,
			forum_remote_id = excluded.forum_remote_id,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		string(m.Kind),
		m.EntityID,
		m.CourseRemoteID,
		m.ForumRemoteID,
		formatTime(m.CreatedAt),
		formatTime(m.UpdatedAt),
	)
	if err != nil {
		return dbError("upsert entity mapping", err)
	}

	return nil
}

// GetMapping retrieves the mapping of an entity
func (s *Storage) GetMapping(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM entity_mappings WHERE entity_type = ? AND entity_id = ?`

	m, err := scanMapping(s.db.QueryRowContext(ctx, query, string(kind), entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMappingNotFound
		}
		return nil, err
	}

	return m, nil
}

// ListMappings returns all mappings of a kind ordered by entity id
func (s *Storage) ListMappings(ctx context.Context, kind models.EntityKind) ([]*models.EntityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM entity_mappings WHERE entity_type = ? ORDER BY entity_id`

	rows, err := s.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, dbError("query entity mappings", err)
	}
	defer rows.Close()

	mappings := make([]*models.EntityMapping, 0)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate entity mappings", err)
	}

	return mappings, nil
}

func scanMapping(row scanner) (*models.EntityMapping, error) {
	var (
		m                    models.EntityMapping
		kind                 string
		createdAt, updatedAt string
	)

	err := row.Scan(&kind, &m.EntityID, &m.CourseRemoteID, &m.ForumRemoteID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbError("scan entity mapping", err)
	}

	if m.Kind, err = models.ParseEntityKind(kind); err != nil {
		return nil, corrupt(err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &m, nil
}
