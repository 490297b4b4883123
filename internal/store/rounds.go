package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// CreateRound inserts an immutable round (§4.1 create_round). parent_id
// is ParentSentinel for a game's seed round.
func (s *Store) CreateRound(ctx context.Context, gameID string, parentID int64, playerChoice, assistantResponse string, usage *LLMUsage, modelName *string) (int64, error) {
	now := s.now()

	var usageJSON any
	if usage != nil {
		payload, err := json.Marshal(usage)
		if err != nil {
			return 0, &engineerr.StorageIO{Op: "marshal_usage", Err: err}
		}
		usageJSON = string(payload)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO rounds (game_id, parent_id, player_choice, assistant_response, llm_usage, model_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		gameID, parentID, playerChoice, assistantResponse, usageJSON, modelName, now,
	)
	if err != nil {
		return 0, &engineerr.StorageIO{Op: "create_round", Err: err}
	}
	return res.LastInsertId()
}

func (s *Store) GetRoundInfo(ctx context.Context, roundID int64) (*Round, error) {
	row := s.conn(ctx).QueryRowContext(ctx, roundSelectColumns+` WHERE round_id = $1`, roundID)
	r, err := scanRoundRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engineerr.NotFound{Kind: engineerr.NotFoundRound, Key: formatRoundID(roundID)}
	}
	return r, err
}

func (s *Store) GetAllRoundsForGame(ctx context.Context, gameID string) ([]*Round, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, roundSelectColumns+` WHERE game_id = $1 ORDER BY round_id ASC`, gameID)
	if err != nil {
		return nil, &engineerr.StorageIO{Op: "get_all_rounds", Err: err}
	}
	defer rows.Close()

	var out []*Round
	for rows.Next() {
		r, err := scanRoundRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRoundAncestors walks roundID back to its root (or until limit
// ancestors have been collected) in a single recursive CTE, then
// returns the chain oldest-first (§4.1, Testable Property 9). A single
// query avoids the N+1 walk a naive parent-by-parent loop would incur.
func (s *Store) GetRoundAncestors(ctx context.Context, roundID int64, limit int) ([]*Round, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		WITH RECURSIVE ancestors(round_id, game_id, parent_id, player_choice, assistant_response, llm_usage, model_name, created_at, depth) AS (
			SELECT round_id, game_id, parent_id, player_choice, assistant_response, llm_usage, model_name, created_at, 0
			FROM rounds WHERE round_id = $1
			UNION ALL
			SELECT r.round_id, r.game_id, r.parent_id, r.player_choice, r.assistant_response, r.llm_usage, r.model_name, r.created_at, a.depth + 1
			FROM rounds r
			JOIN ancestors a ON r.round_id = a.parent_id
			WHERE a.depth + 1 < $2
		)
		SELECT round_id, game_id, parent_id, player_choice, assistant_response, llm_usage, model_name, created_at
		FROM ancestors
		ORDER BY depth DESC`,
		roundID, limit,
	)
	if err != nil {
		return nil, &engineerr.StorageIO{Op: "get_round_ancestors", Err: err}
	}
	defer rows.Close()

	var out []*Round
	for rows.Next() {
		r, err := scanRoundRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const roundSelectColumns = `
	SELECT round_id, game_id, parent_id, player_choice, assistant_response, llm_usage, model_name, created_at
	FROM rounds`

func scanRoundRow(row rowScanner) (*Round, error) {
	var r Round
	var usageJSON sql.NullString
	var modelName sql.NullString

	if err := row.Scan(
		&r.RoundID, &r.GameID, &r.ParentID, &r.PlayerChoice, &r.AssistantResponse,
		&usageJSON, &modelName, &r.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &engineerr.StorageIO{Op: "scan_round", Err: err}
	}

	if modelName.Valid {
		r.ModelName = &modelName.String
	}
	if usageJSON.Valid {
		var usage LLMUsage
		if err := json.Unmarshal([]byte(usageJSON.String), &usage); err != nil {
			return nil, &engineerr.StorageIO{Op: "unmarshal_usage", Err: err}
		}
		r.LLMUsage = &usage
	}
	return &r, nil
}

func formatRoundID(id int64) string {
	return strconv.FormatInt(id, 10)
}
