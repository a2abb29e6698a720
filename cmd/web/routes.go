package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/myrjola/casefile/internal/observe"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	api := alice.New(func(h http.Handler) http.Handler {
		return timeoutHandler(h, defaultTimeout)
	})

	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /api/state", api.ThenFunc(app.state))
	mux.Handle("POST /api/actions/{kind}", api.ThenFunc(app.action))
	mux.Handle("POST /api/dialogue/{op}", api.ThenFunc(app.dialogue))
	// The stream outlives the request timeout while the reply is written.
	mux.HandleFunc("GET /api/dialogue/stream", app.streamReply)
	mux.Handle("GET /api/saves", api.ThenFunc(app.listSaves))
	mux.Handle("POST /api/saves/{slot}", api.ThenFunc(app.save))
	mux.Handle("POST /api/saves/{slot}/load", api.ThenFunc(app.load))
	mux.Handle("DELETE /api/saves/{slot}", api.ThenFunc(app.deleteSave))
	mux.Handle("GET /metrics", app.metricsHandler)

	standard := alice.New(app.recoverPanic, app.logRequest, secureHeaders, observe.Middleware(app.metrics))
	return standard.Then(mux)
}
