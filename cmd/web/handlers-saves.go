package main

import (
	"log/slog"
	"net/http"
	"regexp"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/repositories"
)

var validSlot = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// saveSlot returns the slot named in the path. The live slot can't be saved over.
func (app *application) saveSlot(w http.ResponseWriter, r *http.Request) (string, bool) {
	s := r.PathValue("slot")
	if !validSlot.MatchString(s) || s == slot {
		app.clientError(w, r, http.StatusBadRequest, "slot must be 1-64 letters, digits, '_' or '-'")
		return "", false
	}
	return s, true
}

func (app *application) listSaves(w http.ResponseWriter, r *http.Request) {
	saves, err := app.saves.List(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if saves == nil {
		saves = []repositories.SaveSummary{}
	}
	app.writeJSON(w, r, http.StatusOK, saves)
}

func (app *application) save(w http.ResponseWriter, r *http.Request) {
	to, ok := app.saveSlot(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	app.mu.Lock()
	defer app.mu.Unlock()
	if err := app.saves.Save(ctx, to, app.engine.Snapshot()); err != nil {
		app.serverError(w, r, err)
		return
	}
	if err := app.transcripts.Copy(ctx, slot, to); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "game saved", slog.String("slot", to))
	app.writeJSON(w, r, http.StatusCreated, app.stateView())
}

func (app *application) load(w http.ResponseWriter, r *http.Request) {
	from, ok := app.saveSlot(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	snapshot, err := app.saves.Load(ctx, from)
	if errors.Is(err, repositories.ErrSaveNotFound) {
		app.notFound(w, r, "no save in slot "+from)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	if err = app.engine.Restore(snapshot); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "restore save", slog.String("slot", from), errors.SlogError(err))
		app.clientError(w, r, http.StatusUnprocessableEntity, "save can't be restored: "+err.Error())
		return
	}
	app.replies.invalidate()
	if err = app.transcripts.Copy(ctx, from, slot); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "game loaded", slog.String("slot", from))
	app.writeJSON(w, r, http.StatusOK, app.stateView())
}

func (app *application) deleteSave(w http.ResponseWriter, r *http.Request) {
	s, ok := app.saveSlot(w, r)
	if !ok {
		return
	}
	if err := app.saves.Delete(r.Context(), s); err != nil {
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
