package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/iho/fxledger/internal/adapter/http/dto"
)

// Recovery turns a handler panic into a 500. A panic in the middle of a
// ledger mutation leaves its transaction to the deferred rollback.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Ctx(r.Context()).Error().
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("handler panicked")

			writeError(w, r, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

// writeError answers in the same JSON shape as the handlers, naming the
// request id so an operator can find the matching log line.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := dto.ErrorResponse{Error: message}
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		resp.Message = "request " + id
	}
	json.NewEncoder(w).Encode(resp)
}
