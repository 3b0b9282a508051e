package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Purpose values for guild leaderboard destination settings.
const (
	PurposeMessageChannel = "message_channel"
	PurposeVoiceChannel   = "voice_channel"
)

// Store wraps an embedded SQLite database holding per-guild activity
// counters and leaderboard destination settings. It uses modernc.org/sqlite
// for CGO-less builds.
type Store struct {
	dbPath string
	db     *sql.DB
}

// NewStore creates a new Store pointing to dbPath. Call Init() before using it.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

// Init opens the SQLite database, configures pragmas, and ensures the schema exists.
func (s *Store) Init() error {
	if s.db != nil {
		return nil
	}
	if s.dbPath == "" {
		return fmt.Errorf("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas for durability and concurrency
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set synchronous: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UserStat is one (guild, user) counter row.
type UserStat struct {
	GuildID      string
	UserID       string
	Messages     int64
	VoiceSeconds int64
}

// IncrementMessages adds one to the message counter for (guildID, userID),
// creating the row if absent. The upsert is a single statement, so
// concurrent increments for the same key never lose updates.
func (s *Store) IncrementMessages(guildID, userID string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if guildID == "" || userID == "" {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO user_stats (guild_id, user_id, messages, voice_seconds)
         VALUES (?, ?, 1, 0)
         ON CONFLICT(guild_id, user_id) DO UPDATE SET
           messages = user_stats.messages + 1`,
		guildID, userID,
	)
	return err
}

// AddVoiceSeconds adds seconds to the voice counter for (guildID, userID),
// creating the row if absent. Non-positive deltas are ignored so counters
// stay monotonically non-decreasing.
func (s *Store) AddVoiceSeconds(guildID, userID string, seconds int64) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if guildID == "" || userID == "" || seconds <= 0 {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO user_stats (guild_id, user_id, messages, voice_seconds)
         VALUES (?, ?, 0, ?)
         ON CONFLICT(guild_id, user_id) DO UPDATE SET
           voice_seconds = user_stats.voice_seconds + excluded.voice_seconds`,
		guildID, userID, seconds,
	)
	return err
}

// UserStat returns the counters for a single (guild, user) pair, if present.
func (s *Store) UserStat(guildID, userID string) (UserStat, bool, error) {
	if s.db == nil {
		return UserStat{}, false, fmt.Errorf("store not initialized")
	}
	row := s.db.QueryRow(
		`SELECT guild_id, user_id, messages, voice_seconds
         FROM user_stats WHERE guild_id=? AND user_id=?`,
		guildID, userID,
	)
	var st UserStat
	if err := row.Scan(&st.GuildID, &st.UserID, &st.Messages, &st.VoiceSeconds); err != nil {
		if err == sql.ErrNoRows {
			return UserStat{}, false, nil
		}
		return UserStat{}, false, err
	}
	return st, true, nil
}

// TopByMessages returns up to limit rows for a guild ordered by message
// count descending. Ties break on ascending user_id so repeated queries over
// unchanged data are deterministic.
func (s *Store) TopByMessages(guildID string, limit int) ([]UserStat, error) {
	return s.top(guildID, limit, `messages`)
}

// TopByVoice returns up to limit rows for a guild ordered by accumulated
// voice seconds descending, ties on ascending user_id.
func (s *Store) TopByVoice(guildID string, limit int) ([]UserStat, error) {
	return s.top(guildID, limit, `voice_seconds`)
}

func (s *Store) top(guildID string, limit int, column string) ([]UserStat, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	// column is one of two compile-time constants, never user input.
	rows, err := s.db.Query(
		`SELECT guild_id, user_id, messages, voice_seconds
         FROM user_stats WHERE guild_id=?
         ORDER BY `+column+` DESC, user_id ASC LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []UserStat
	for rows.Next() {
		var st UserStat
		if err := rows.Scan(&st.GuildID, &st.UserID, &st.Messages, &st.VoiceSeconds); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// SetLeaderboardChannel stores the destination channel for a guild and
// purpose (PurposeMessageChannel or PurposeVoiceChannel).
func (s *Store) SetLeaderboardChannel(guildID, purpose, channelID string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if guildID == "" || purpose == "" || channelID == "" {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO guild_settings (guild_id, purpose, channel_id)
         VALUES (?, ?, ?)
         ON CONFLICT(guild_id, purpose) DO UPDATE SET
           channel_id=excluded.channel_id`,
		guildID, purpose, channelID,
	)
	return err
}

// LeaderboardChannel returns the configured destination channel for a guild
// and purpose, if any.
func (s *Store) LeaderboardChannel(guildID, purpose string) (string, bool, error) {
	if s.db == nil {
		return "", false, fmt.Errorf("store not initialized")
	}
	row := s.db.QueryRow(
		`SELECT channel_id FROM guild_settings WHERE guild_id=? AND purpose=?`,
		guildID, purpose,
	)
	var channelID string
	if err := row.Scan(&channelID); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return channelID, true, nil
}

// ClearLeaderboardChannel removes a destination setting (no error if absent).
// No command exposes this today, but the reconciliation state machine relies
// on the store supporting it.
func (s *Store) ClearLeaderboardChannel(guildID, purpose string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	_, err := s.db.Exec(`DELETE FROM guild_settings WHERE guild_id=? AND purpose=?`, guildID, purpose)
	return err
}

// ensureSchema creates required tables and indexes if they don't exist.
func ensureSchema(db *sql.DB) error {
	const createUserStats = `
CREATE TABLE IF NOT EXISTS user_stats (
  guild_id      TEXT NOT NULL,
  user_id       TEXT NOT NULL,
  messages      INTEGER NOT NULL DEFAULT 0,
  voice_seconds INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (guild_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_user_stats_messages ON user_stats(guild_id, messages DESC);
CREATE INDEX IF NOT EXISTS idx_user_stats_voice ON user_stats(guild_id, voice_seconds DESC);`

	const createGuildSettings = `
CREATE TABLE IF NOT EXISTS guild_settings (
  guild_id   TEXT NOT NULL,
  purpose    TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  PRIMARY KEY (guild_id, purpose)
);`

	for _, sqlText := range []string{createUserStats, createGuildSettings} {
		if _, err := db.Exec(sqlText); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
