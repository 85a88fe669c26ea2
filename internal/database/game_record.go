// internal/database/game_record.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/wordrelay/internal/models"
)

// Schema creates the tables the historian writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS game_records (
	id          UUID PRIMARY KEY,
	room_id     UUID NOT NULL,
	room_name   TEXT NOT NULL,
	mode        TEXT NOT NULL,
	answer      TEXT NOT NULL,
	won         BOOLEAN NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS game_record_players (
	game_id UUID NOT NULL REFERENCES game_records (id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,
	name    TEXT NOT NULL,
	seat    INT NOT NULL,
	score   INT NOT NULL,
	answer  TEXT NOT NULL DEFAULT '',
	correct BOOLEAN NOT NULL,
	PRIMARY KEY (game_id, user_id)
);
`

// Execer runs a statement. Both *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// EnsureSchema creates missing tables.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const insertGameRecordQ = `
	INSERT INTO game_records (id, room_id, room_name, mode, answer, won, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`

const insertGameRecordPlayerQ = `
	INSERT INTO game_record_players (game_id, user_id, name, seat, score, answer, correct)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (game_id, user_id) DO NOTHING
`

// InsertGameRecords writes a batch of settled games in one transaction.
// Records already stored are skipped, so a replayed batch is harmless.
func InsertGameRecords(ctx context.Context, db TxBeginner, recs []models.GameRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertGameRecordTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("game %s: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game records: %w", err)
	}
	return nil
}

func insertGameRecordTx(ctx context.Context, tx Execer, rec models.GameRecord) error {
	_, err := tx.Exec(ctx, insertGameRecordQ,
		rec.ID, rec.RoomID, rec.RoomName, rec.Mode, rec.Answer, rec.Won, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return err
	}
	for _, p := range rec.Players {
		_, err = tx.Exec(ctx, insertGameRecordPlayerQ,
			rec.ID, p.UserID, p.Name, p.Seat, p.Score, p.Answer, p.Correct,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
