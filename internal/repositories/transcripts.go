package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/sqlite"
)

// Exchange is one free-form question and the character's answer.
type Exchange struct {
	Order    int    `json:"order"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TranscriptRepository keeps the free-form conversations of each save slot, per character.
type TranscriptRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewTranscriptRepository(dbs *sqlite.Database, logger *slog.Logger) *TranscriptRepository {
	return &TranscriptRepository{
		dbs:    dbs,
		logger: logger.With("source", "TranscriptRepository"),
	}
}

// Get returns the conversation with npc in slot, oldest exchange first.
func (r *TranscriptRepository) Get(ctx context.Context, slot, npc string) ([]Exchange, error) {
	var (
		exchanges []Exchange
		rows      *sql.Rows
		err       error
	)
	stmt := `SELECT "order", question, answer
FROM transcripts
WHERE slot = ? AND npc = ?
ORDER BY "order"`
	if rows, err = r.dbs.ReadOnly.QueryContext(ctx, stmt, slot, npc); err != nil {
		return nil, errors.Wrap(err, "query transcripts")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			err = errors.Wrap(err, "close rows")
			r.logger.Error("could not close rows", errors.SlogError(err))
		}
	}()
	for rows.Next() {
		var exchange Exchange
		if err = rows.Scan(&exchange.Order, &exchange.Question, &exchange.Answer); err != nil {
			return nil, errors.Wrap(err, "scan exchange")
		}
		exchanges = append(exchanges, exchange)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return exchanges, nil
}

// Append adds an exchange to the end of the conversation with npc in slot.
func (r *TranscriptRepository) Append(ctx context.Context, slot, npc, question, answer string) error {
	stmt := `INSERT INTO transcripts (slot, npc, question, answer, "order")
VALUES (@slot, @npc, @question, @answer,
        (SELECT COALESCE(MAX("order") + 1, 0) FROM transcripts WHERE slot = @slot AND npc = @npc));`
	params := []any{
		sql.Named("slot", slot),
		sql.Named("npc", npc),
		sql.Named("question", question),
		sql.Named("answer", answer),
	}
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, params...); err != nil {
		return errors.Wrap(err, "insert exchange", slog.String("slot", slot), slog.String("npc", npc))
	}
	return nil
}

// Copy duplicates every conversation of slot from into slot to, replacing what to had. Used when a game is saved
// under a new name.
func (r *TranscriptRepository) Copy(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	tx, err := r.dbs.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err = tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error("could not roll back", errors.SlogError(err))
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM transcripts WHERE slot = ?`, to); err != nil {
		return errors.Wrap(err, "clear target transcripts")
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO transcripts (slot, npc, "order", question, answer)
SELECT ?, npc, "order", question, answer FROM transcripts WHERE slot = ?`, to, from); err != nil {
		return errors.Wrap(err, "copy transcripts")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Clear forgets every conversation of slot.
func (r *TranscriptRepository) Clear(ctx context.Context, slot string) error {
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, `DELETE FROM transcripts WHERE slot = ?`, slot); err != nil {
		return errors.Wrap(err, "clear transcripts", slog.String("slot", slot))
	}
	return nil
}
