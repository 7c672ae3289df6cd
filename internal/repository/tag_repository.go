package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// TagRepository defines domain-specific operations for tags and their node assignments
type TagRepository interface {
	Repository[domain.Tag, int64]
	FindByName(ctx context.Context, name string) (domain.Tag, error)
	GetOrCreate(ctx context.Context, name string) (domain.Tag, error)
	FindByNodeID(ctx context.Context, nodeID int64) ([]domain.Tag, error)
	AddToNode(ctx context.Context, nodeID, tagID int64) error
	RemoveFromNode(ctx context.Context, nodeID, tagID int64) error
}

// tagRepositoryImpl implements TagRepository
type tagRepositoryImpl struct {
	db DBTX
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db DBTX) TagRepository {
	return &tagRepositoryImpl{
		db: db,
	}
}

// Save creates or updates a tag
func (r *tagRepositoryImpl) Save(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	if tag.Name == "" {
		return domain.Tag{}, fmt.Errorf("tag name is required: %w", ErrInvalidEntity)
	}

	if tag.ID == 0 {
		result, err := r.db.ExecContext(ctx,
			"INSERT INTO tags (name, definition, comment) VALUES (?, ?, ?)",
			tag.Name, tag.Definition, tag.Comment)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Tag{}, fmt.Errorf("tag %s: %w", tag.Name, ErrDuplicate)
			}
			return domain.Tag{}, fmt.Errorf("failed to create tag: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return domain.Tag{}, fmt.Errorf("failed to get tag ID: %w", err)
		}
		tag.ID = id
		return tag, nil
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE tags SET name = ?, definition = ?, comment = ? WHERE id = ?",
		tag.Name, tag.Definition, tag.Comment, tag.ID)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("failed to update tag: %w", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return domain.Tag{}, fmt.Errorf("tag %d: %w", tag.ID, err)
	}
	return tag, nil
}

// FindByID finds a tag by ID
func (r *tagRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Tag, error) {
	return scanTag(r.db.QueryRowContext(ctx, "SELECT id, name, definition, comment FROM tags WHERE id = ?", id))
}

// FindByName finds a tag by name
func (r *tagRepositoryImpl) FindByName(ctx context.Context, name string) (domain.Tag, error) {
	return scanTag(r.db.QueryRowContext(ctx, "SELECT id, name, definition, comment FROM tags WHERE name = ?", name))
}

// GetOrCreate returns the named tag, creating it with an empty definition if needed
func (r *tagRepositoryImpl) GetOrCreate(ctx context.Context, name string) (domain.Tag, error) {
	tag, err := r.FindByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Tag{}, err
	}
	return r.Save(ctx, domain.Tag{Name: name})
}

// FindAll finds all tags
func (r *tagRepositoryImpl) FindAll(ctx context.Context) ([]domain.Tag, error) {
	return r.query(ctx, "SELECT id, name, definition, comment FROM tags ORDER BY name")
}

// FindByNodeID returns the tags assigned to a node
func (r *tagRepositoryImpl) FindByNodeID(ctx context.Context, nodeID int64) ([]domain.Tag, error) {
	return r.query(ctx, `
		SELECT t.id, t.name, t.definition, t.comment
		FROM tags t JOIN node_tags nt ON nt.tag_id = t.id
		WHERE nt.node_id = ?
		ORDER BY t.name`, nodeID)
}

func (r *tagRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}

// AddToNode assigns a tag to a node. Assigning twice is a no-op.
func (r *tagRepositoryImpl) AddToNode(ctx context.Context, nodeID, tagID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO node_tags (node_id, tag_id) VALUES (?, ?)", nodeID, tagID)
	if err != nil {
		return fmt.Errorf("failed to tag node %d: %w", nodeID, err)
	}
	return nil
}

// RemoveFromNode unassigns a tag from a node. Removing an absent tag is a no-op.
func (r *tagRepositoryImpl) RemoveFromNode(ctx context.Context, nodeID, tagID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM node_tags WHERE node_id = ? AND tag_id = ?", nodeID, tagID)
	if err != nil {
		return fmt.Errorf("failed to untag node %d: %w", nodeID, err)
	}
	return nil
}

// DeleteByID deletes a tag by ID
func (r *tagRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if a tag exists by ID
func (r *tagRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check tag existence: %w", err)
	}
	return count > 0, nil
}

func scanTag(row rowScanner) (domain.Tag, error) {
	var tag domain.Tag
	if err := row.Scan(&tag.ID, &tag.Name, &tag.Definition, &tag.Comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tag{}, ErrNotFound
		}
		return domain.Tag{}, fmt.Errorf("failed to scan tag: %w", err)
	}
	return tag, nil
}
