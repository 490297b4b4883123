package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/ids"
)

// CreateBranch inserts a new branch; the (game_id, name) UNIQUE
// constraint is the authoritative uniqueness check (§4.1).
func (s *Store) CreateBranch(ctx context.Context, gameID, name string, tipRoundID *int64) (string, error) {
	branchID := ids.NewBranchID()
	now := s.now()

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO branches (branch_id, game_id, name, tip_round_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		branchID, gameID, name, tipRoundID, now,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return "", &engineerr.Conflict{Kind: engineerr.ConflictBranchName, Name: name}
		}
		return "", &engineerr.StorageIO{Op: "create_branch", Err: err}
	}
	return branchID, nil
}

func (s *Store) GetBranchByName(ctx context.Context, gameID, name string) (*Branch, error) {
	row := s.conn(ctx).QueryRowContext(ctx, branchSelectColumns+` WHERE game_id = $1 AND name = $2`, gameID, name)
	return scanBranch(row, name)
}

func (s *Store) GetBranchByID(ctx context.Context, branchID string) (*Branch, error) {
	row := s.conn(ctx).QueryRowContext(ctx, branchSelectColumns+` WHERE branch_id = $1`, branchID)
	return scanBranch(row, branchID)
}

func (s *Store) GetAllBranchesForGame(ctx context.Context, gameID string) ([]*Branch, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, branchSelectColumns+` WHERE game_id = $1 ORDER BY name ASC`, gameID)
	if err != nil {
		return nil, &engineerr.StorageIO{Op: "get_all_branches", Err: err}
	}
	defer rows.Close()

	var out []*Branch
	for rows.Next() {
		b, err := scanBranchRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RenameBranch renames a branch, honoring the (game_id, name) uniqueness
// rule (§4.1 rename_branch).
func (s *Store) RenameBranch(ctx context.Context, branchID, newName string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE branches SET name = $1 WHERE branch_id = $2`, newName, branchID)
	if err != nil {
		if isUniqueConstraint(err) {
			return &engineerr.Conflict{Kind: engineerr.ConflictBranchName, Name: newName}
		}
		return &engineerr.StorageIO{Op: "rename_branch", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundBranch, branchID)
}

// DeleteBranch removes a branch. Forbidding deletion of the game's
// current HEAD branch (§3 invariant) is enforced by the engine layer,
// which reads head_branch_id before calling this.
func (s *Store) DeleteBranch(ctx context.Context, branchID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM branches WHERE branch_id = $1`, branchID)
	if err != nil {
		return &engineerr.StorageIO{Op: "delete_branch", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundBranch, branchID)
}

func (s *Store) UpdateBranchTip(ctx context.Context, branchID string, roundID int64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE branches SET tip_round_id = $1 WHERE branch_id = $2`, roundID, branchID)
	if err != nil {
		return &engineerr.StorageIO{Op: "update_branch_tip", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundBranch, branchID)
}

const branchSelectColumns = `SELECT branch_id, game_id, name, tip_round_id, updated_at FROM branches`

func scanBranch(row *sql.Row, key string) (*Branch, error) {
	b, err := scanBranchRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: key}
	}
	return b, err
}

func scanBranchRow(row rowScanner) (*Branch, error) {
	var b Branch
	var tipRoundID sql.NullInt64

	if err := row.Scan(&b.BranchID, &b.GameID, &b.Name, &tipRoundID, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &engineerr.StorageIO{Op: "scan_branch", Err: err}
	}
	if tipRoundID.Valid {
		b.TipRoundID = &tipRoundID.Int64
	}
	return &b, nil
}
