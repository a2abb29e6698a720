package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myrjola/casefile/internal/engine"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/sqlite"
)

var ErrSaveNotFound = errors.NewSentinel("save not found")

// timestampLayout matches STRFTIME('%Y-%m-%dT%H:%M:%fZ') in schema.sql.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// SaveSummary describes a save slot without loading its snapshot.
type SaveSummary struct {
	Slot    string    `json:"slot"`
	Case    string    `json:"case"`
	Chapter string    `json:"chapter"`
	Phase   string    `json:"phase"`
	Updated time.Time `json:"updated"`
}

type SaveRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewSaveRepository(dbs *sqlite.Database, logger *slog.Logger) *SaveRepository {
	return &SaveRepository{
		dbs:    dbs,
		logger: logger.With("source", "SaveRepository"),
	}
}

// Save writes snapshot to slot, replacing what was saved there before.
func (r *SaveRepository) Save(ctx context.Context, slot string, snapshot engine.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	stmt := `INSERT INTO saves (slot, case_id, chapter, phase, snapshot)
VALUES (@slot, @case_id, @chapter, @phase, @snapshot)
ON CONFLICT (slot) DO UPDATE SET case_id  = excluded.case_id,
                                 chapter  = excluded.chapter,
                                 phase    = excluded.phase,
                                 snapshot = excluded.snapshot;`
	params := []any{
		sql.Named("slot", slot),
		sql.Named("case_id", snapshot.Case),
		sql.Named("chapter", snapshot.State.Chapter),
		sql.Named("phase", snapshot.State.Phase),
		sql.Named("snapshot", string(payload)),
	}
	if _, err = r.dbs.ReadWrite.ExecContext(ctx, stmt, params...); err != nil {
		return errors.Wrap(err, "upsert save", slog.String("slot", slot))
	}
	return nil
}

// Load reads the snapshot saved in slot. It returns ErrSaveNotFound for an empty slot.
func (r *SaveRepository) Load(ctx context.Context, slot string) (engine.Snapshot, error) {
	var (
		payload  string
		snapshot engine.Snapshot
		err      error
	)
	stmt := `SELECT snapshot FROM saves WHERE slot = ?`
	if err = r.dbs.ReadOnly.QueryRowContext(ctx, stmt, slot).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot, errors.Wrap(ErrSaveNotFound, "read save", slog.String("slot", slot))
		}
		return snapshot, errors.Wrap(err, "read save", slog.String("slot", slot))
	}
	if err = json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return snapshot, errors.Wrap(err, "unmarshal snapshot", slog.String("slot", slot))
	}
	return snapshot, nil
}

// List returns every save, most recently updated first.
func (r *SaveRepository) List(ctx context.Context) ([]SaveSummary, error) {
	var (
		saves []SaveSummary
		rows  *sql.Rows
		err   error
	)
	stmt := `SELECT slot, case_id, chapter, phase, updated FROM saves ORDER BY updated DESC, slot`
	if rows, err = r.dbs.ReadOnly.QueryContext(ctx, stmt); err != nil {
		return nil, errors.Wrap(err, "query saves")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			err = errors.Wrap(err, "close rows")
			r.logger.Error("could not close rows", errors.SlogError(err))
		}
	}()
	for rows.Next() {
		var (
			save    SaveSummary
			updated string
		)
		if err = rows.Scan(&save.Slot, &save.Case, &save.Chapter, &save.Phase, &updated); err != nil {
			return nil, errors.Wrap(err, "scan save")
		}
		if save.Updated, err = time.Parse(timestampLayout, updated); err != nil {
			return nil, errors.Wrap(err, "parse updated", slog.String("updated", updated))
		}
		saves = append(saves, save)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return saves, nil
}

// Delete removes the save in slot together with its conversation transcripts. Deleting an empty slot is not an
// error.
func (r *SaveRepository) Delete(ctx context.Context, slot string) error {
	tx, err := r.dbs.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err = tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error("could not roll back", errors.SlogError(err))
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM transcripts WHERE slot = ?`, slot); err != nil {
		return errors.Wrap(err, "delete transcripts", slog.String("slot", slot))
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM saves WHERE slot = ?`, slot); err != nil {
		return errors.Wrap(err, "delete save", slog.String("slot", slot))
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}
