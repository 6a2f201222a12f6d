package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/storage"
	"github.com/ordokr/LMS-sub004/internal/vclock"
)

const stateColumns = `entity_type, entity_id, local_vector, course_vector, forum_vector, last_sync, status`

// GetState retrieves the state of a single entity
// Returns ErrStateNotFound if the entity is not tracked
func (s *Storage) GetState(ctx context.Context, kind models.EntityKind, entityID string) (*models.EntityVersionState, error) {
	query := `SELECT ` + stateColumns + ` FROM entity_version_vectors WHERE entity_type = ? AND entity_id = ?`

	state, err := scanState(s.db.QueryRowContext(ctx, query, string(kind), entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrStateNotFound
		}
		return nil, err
	}

	return state, nil
}

// UpsertState inserts the state or overwrites all non-key columns
func (s *Storage) UpsertState(ctx context.Context, state *models.EntityVersionState) error {
	local, err := state.Local.EncodeBase64()
	if err != nil {
		return fmt.Errorf("failed to encode local vector: %w", err)
	}
	course, err := state.Course.EncodeBase64()
	if err != nil {
		return fmt.Errorf("failed to encode course vector: %w", err)
	}
	forum, err := state.Forum.EncodeBase64()
	if err != nil {
		return fmt.Errorf("failed to encode forum vector: %w", err)
	}

	query := `
		INSERT INTO entity_version_vectors (` + stateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			local_vector = excluded.local_vector,
			course_vector = excluded.course_vector,
			forum_vector = excluded.forum_vector,
			last_sync = excluded.last_sync,
			status = excluded.status
	`

	_, err = s.db.ExecContext(ctx, query,
		string(state.Kind),
		state.EntityID,
		local,
		course,
		forum,
		formatTime(state.LastSync),
		string(state.Status),
	)
	if err != nil {
		return dbError("upsert entity state", err)
	}

	return nil
}

// ListStates returns states matching the filter ordered by kind and id
func (s *Storage) ListStates(ctx context.Context, filter models.StateFilter) ([]*models.EntityVersionState, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + stateColumns + ` FROM entity_version_vectors`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY entity_type, entity_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query entity states", err)
	}
	defer rows.Close()

	states := make([]*models.EntityVersionState, 0)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate entity states", err)
	}

	return states, nil
}

func scanState(row scanner) (*models.EntityVersionState, error) {
	var kind, entityID, local, course, forum, lastSync, status string

	if err := row.Scan(&kind, &entityID, &local, &course, &forum, &lastSync, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbError("scan entity state", err)
	}

	state := &models.EntityVersionState{EntityID: entityID}
	var err error

	if state.Kind, err = models.ParseEntityKind(kind); err != nil {
		return nil, corrupt(err)
	}
	if state.Status, err = models.ParseSyncStatus(status); err != nil {
		return nil, corrupt(err)
	}
	if state.LastSync, err = parseTime(lastSync); err != nil {
		return nil, err
	}
	if state.Local, err = vclock.DecodeBase64(local); err != nil {
		return nil, corrupt(fmt.Errorf("local vector of %s:%s: %w", kind, entityID, err))
	}
	if state.Course, err = vclock.DecodeBase64(course); err != nil {
		return nil, corrupt(fmt.Errorf("course vector of %s:%s: %w", kind, entityID, err))
	}
	if state.Forum, err = vclock.DecodeBase64(forum); err != nil {
		return nil, corrupt(fmt.Errorf("forum vector of %s:%s: %w", kind, entityID, err))
	}

	return state, nil
}
