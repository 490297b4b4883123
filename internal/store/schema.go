package store

// schema is applied once at Open; CREATE TABLE/INDEX/TRIGGER IF NOT
// EXISTS makes it safe to re-run against an already-migrated database,
// matching the teacher's tolerant-migration idiom (pkg/cron/store.go's
// LoadCronStore degrading gracefully on a missing/invalid file) adapted
// to a relational schema instead of a JSON blob.
const schema = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS games (
	game_id                     TEXT PRIMARY KEY,
	channel_id                  TEXT UNIQUE,
	host_user_id                TEXT NOT NULL,
	system_prompt               TEXT NOT NULL,
	main_message_id             TEXT,
	candidate_custom_input_ids  TEXT NOT NULL DEFAULT '[]',
	head_branch_id              TEXT,
	is_frozen                   INTEGER NOT NULL DEFAULT 0,
	created_at                  INTEGER NOT NULL,
	updated_at                  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_games_main_message_id ON games(main_message_id);

CREATE TABLE IF NOT EXISTS branches (
	branch_id     TEXT PRIMARY KEY,
	game_id       TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	tip_round_id  INTEGER,
	updated_at    INTEGER NOT NULL,
	UNIQUE(game_id, name)
);

CREATE INDEX IF NOT EXISTS idx_branches_game_id ON branches(game_id);

CREATE TABLE IF NOT EXISTS rounds (
	round_id            INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id             TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	parent_id           INTEGER NOT NULL DEFAULT -1,
	player_choice       TEXT NOT NULL,
	assistant_response  TEXT NOT NULL,
	llm_usage           TEXT,
	model_name          TEXT,
	created_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_game_id ON rounds(game_id);
CREATE INDEX IF NOT EXISTS idx_rounds_parent_id ON rounds(parent_id);

CREATE TABLE IF NOT EXISTS tags (
	tag_id     TEXT PRIMARY KEY,
	game_id    TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	round_id   INTEGER NOT NULL REFERENCES rounds(round_id) ON DELETE CASCADE,
	UNIQUE(game_id, name)
);

CREATE INDEX IF NOT EXISTS idx_tags_game_id ON tags(game_id);
CREATE INDEX IF NOT EXISTS idx_tags_round_id ON tags(round_id);

CREATE TRIGGER IF NOT EXISTS trg_games_updated_at
AFTER UPDATE ON games
FOR EACH ROW WHEN NEW.updated_at = OLD.updated_at
BEGIN
	UPDATE games SET updated_at = CAST(strftime('%s','now') AS INTEGER) WHERE game_id = NEW.game_id;
END;

CREATE TRIGGER IF NOT EXISTS trg_branches_updated_at
AFTER UPDATE ON branches
FOR EACH ROW WHEN NEW.updated_at = OLD.updated_at
BEGIN
	UPDATE branches SET updated_at = CAST(strftime('%s','now') AS INTEGER) WHERE branch_id = NEW.branch_id;
END;
`
