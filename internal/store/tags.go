package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/ids"
)

func (s *Store) CreateTag(ctx context.Context, gameID, name string, roundID int64) (string, error) {
	tagID := ids.NewTagID()

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO tags (tag_id, game_id, name, round_id) VALUES ($1, $2, $3, $4)`,
		tagID, gameID, name, roundID,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return "", &engineerr.Conflict{Kind: engineerr.ConflictTagName, Name: name}
		}
		return "", &engineerr.StorageIO{Op: "create_tag", Err: err}
	}
	return tagID, nil
}

func (s *Store) GetTagByName(ctx context.Context, gameID, name string) (*Tag, error) {
	row := s.conn(ctx).QueryRowContext(ctx, tagSelectColumns+` WHERE game_id = $1 AND name = $2`, gameID, name)
	t, err := scanTagRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engineerr.NotFound{Kind: engineerr.NotFoundTag, Key: name}
	}
	return t, err
}

func (s *Store) GetAllTagsForGame(ctx context.Context, gameID string) ([]*Tag, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, tagSelectColumns+` WHERE game_id = $1 ORDER BY name ASC`, gameID)
	if err != nil {
		return nil, &engineerr.StorageIO{Op: "get_all_tags", Err: err}
	}
	defer rows.Close()

	var out []*Tag
	for rows.Next() {
		t, err := scanTagRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTag(ctx context.Context, tagID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM tags WHERE tag_id = $1`, tagID)
	if err != nil {
		return &engineerr.StorageIO{Op: "delete_tag", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundTag, tagID)
}

const tagSelectColumns = `SELECT tag_id, game_id, name, round_id FROM tags`

func scanTagRow(row rowScanner) (*Tag, error) {
	var t Tag
	if err := row.Scan(&t.TagID, &t.GameID, &t.Name, &t.RoundID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &engineerr.StorageIO{Op: "scan_tag", Err: err}
	}
	return &t, nil
}
