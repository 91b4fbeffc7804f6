package messaging

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxMessageBodySize = 1 << 20 // 1MB

// NewHTTPHandler exposes bus over HTTP:
//
//	POST /message  body: Message, reply: Response
//	GET  /healthz  reply: {"status":"ok","actions":[...]}
func NewHTTPHandler(bus *Bus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/message", handleMessage(bus))
	r.Get("/healthz", handleHealth(bus))

	return r
}

func handleMessage(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxMessageBodySize)
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Status: StatusError, Error: "invalid message: " + err.Error()})
			return
		}
		if msg.Action == "" {
			writeJSON(w, http.StatusBadRequest, Response{Status: StatusError, Error: "action is required"})
			return
		}

		data, err := bus.Call(r.Context(), msg)
		switch {
		case errors.Is(err, ErrUnknownAction):
			writeJSON(w, http.StatusNotFound, Response{Status: StatusError, Error: err.Error()})
		case err != nil:
			writeJSON(w, http.StatusUnprocessableEntity, Response{Status: StatusError, Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, Response{Status: StatusSuccess, Data: data})
		}
	}
}

func handleHealth(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"actions": bus.Actions(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
