package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/casefile/internal/errors"
)

type healthView struct {
	Status string `json:"status"`
	Case   string `json:"case"`
}

// healthy reports whether the saved games can be reached.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	if err := app.db.ReadOnly.PingContext(r.Context()); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "database unreachable", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusServiceUnavailable, healthView{Status: "unavailable", Case: app.engine.Case.Meta.ID})
		return
	}
	app.writeJSON(w, r, http.StatusOK, healthView{Status: "ok", Case: app.engine.Case.Meta.ID})
}
