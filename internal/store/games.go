package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/ids"
)

// CreateGame inserts a new Game row and returns its id (§4.1
// create_game). channelID may be empty, meaning the game starts
// unattached.
func (s *Store) CreateGame(ctx context.Context, channelID, hostUserID, systemPrompt string) (string, error) {
	gameID := ids.NewGameID()
	now := s.now()

	var channelArg any
	if channelID != "" {
		channelArg = channelID
	}

	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO games (game_id, channel_id, host_user_id, system_prompt, candidate_custom_input_ids, is_frozen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '[]', 0, $5, $5)`,
		gameID, channelArg, hostUserID, systemPrompt, now,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return "", &engineerr.Conflict{Kind: engineerr.ConflictChannelBusy, Name: channelID}
		}
		return "", &engineerr.StorageIO{Op: "create_game", Err: err}
	}
	return gameID, nil
}

// AttachGameToChannel binds an unbound game to a channel (§4.1). Fails
// with Conflict if the channel already hosts a live game (Testable
// Property 1).
func (s *Store) AttachGameToChannel(ctx context.Context, gameID, channelID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE games SET channel_id = $1 WHERE game_id = $2`, channelID, gameID)
	if err != nil {
		if isUniqueConstraint(err) {
			return &engineerr.Conflict{Kind: engineerr.ConflictChannelBusy, Name: channelID}
		}
		return &engineerr.StorageIO{Op: "attach_game", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

// DetachGameFromChannel nullifies channel_id, main_message_id, and
// candidate_custom_input_ids (§3 invariant).
func (s *Store) DetachGameFromChannel(ctx context.Context, gameID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE games SET channel_id = NULL, main_message_id = NULL, candidate_custom_input_ids = '[]'
		WHERE game_id = $1`, gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "detach_game", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

func (s *Store) GetGameByChannelID(ctx context.Context, channelID string) (*Game, error) {
	row := s.conn(ctx).QueryRowContext(ctx, gameSelectColumns+` WHERE channel_id = $1`, channelID)
	return scanGame(row, channelID)
}

func (s *Store) GetGameByGameID(ctx context.Context, gameID string) (*Game, error) {
	row := s.conn(ctx).QueryRowContext(ctx, gameSelectColumns+` WHERE game_id = $1`, gameID)
	return scanGame(row, gameID)
}

func (s *Store) GetAllGames(ctx context.Context) ([]*Game, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, gameSelectColumns+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, &engineerr.StorageIO{Op: "get_all_games", Err: err}
	}
	defer rows.Close()

	var out []*Game
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) SetGameFrozenStatus(ctx context.Context, gameID string, frozen bool) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE games SET is_frozen = $1 WHERE game_id = $2`, frozen, gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "set_frozen", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

func (s *Store) UpdateGameMainMessage(ctx context.Context, gameID, messageID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE games SET main_message_id = $1 WHERE game_id = $2`, messageID, gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "update_main_message", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

func (s *Store) UpdateCandidateCustomInputIDs(ctx context.Context, gameID string, candidateIDs []string) error {
	if candidateIDs == nil {
		candidateIDs = []string{}
	}
	payload, err := json.Marshal(candidateIDs)
	if err != nil {
		return &engineerr.StorageIO{Op: "marshal_candidates", Err: err}
	}
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE games SET candidate_custom_input_ids = $1 WHERE game_id = $2`, string(payload), gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "update_candidates", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

func (s *Store) UpdateGameHeadBranch(ctx context.Context, gameID, branchID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE games SET head_branch_id = $1 WHERE game_id = $2`, branchID, gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "update_head_branch", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

func (s *Store) UpdateGameHost(ctx context.Context, gameID, hostUserID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE games SET host_user_id = $1 WHERE game_id = $2`, hostUserID, gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "update_host", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM games WHERE game_id = $1`, gameID)
	if err != nil {
		return &engineerr.StorageIO{Op: "delete_game", Err: err}
	}
	return requireRowsAffected(res, engineerr.NotFoundGame, gameID)
}

const gameSelectColumns = `
	SELECT game_id, channel_id, host_user_id, system_prompt, main_message_id,
	       candidate_custom_input_ids, head_branch_id, is_frozen, created_at, updated_at
	FROM games`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row *sql.Row, key string) (*Game, error) {
	g, err := scanGameRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engineerr.NotFound{Kind: engineerr.NotFoundGame, Key: key}
	}
	return g, err
}

func scanGameRow(row rowScanner) (*Game, error) {
	var g Game
	var channelID, mainMessageID, headBranchID sql.NullString
	var candidatesJSON string
	var isFrozen int

	if err := row.Scan(
		&g.GameID, &channelID, &g.HostUserID, &g.SystemPrompt, &mainMessageID,
		&candidatesJSON, &headBranchID, &isFrozen, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &engineerr.StorageIO{Op: "scan_game", Err: err}
	}

	if channelID.Valid {
		g.ChannelID = &channelID.String
	}
	if mainMessageID.Valid {
		g.MainMessageID = &mainMessageID.String
	}
	if headBranchID.Valid {
		g.HeadBranchID = &headBranchID.String
	}
	g.IsFrozen = isFrozen != 0

	var candidates []string
	if err := json.Unmarshal([]byte(candidatesJSON), &candidates); err != nil {
		return nil, &engineerr.StorageIO{Op: "unmarshal_candidates", Err: err}
	}
	g.CandidateCustomInputIDs = candidates

	return &g, nil
}

func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func requireRowsAffected(res sql.Result, kind engineerr.NotFoundKind, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &engineerr.StorageIO{Op: "rows_affected", Err: err}
	}
	if n == 0 {
		return &engineerr.NotFound{Kind: kind, Key: key}
	}
	return nil
}
