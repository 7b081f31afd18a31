// CLAUDE:SUMMARY chi HTTP API for the registry: message intake, lifecycle signals, record queries, indicator PNGs, health.
package tabregistry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/savedtabs/kit"
	"github.com/hazyhaar/savedtabs/message"
	"github.com/hazyhaar/savedtabs/shield"
)

// Handler returns the registry HTTP API:
//
//	POST   /v1/tabs/{tabID}/messages          FOUND_COUNT from an observer
//	POST   /v1/tabs/{tabID}/updated           navigation started
//	POST   /v1/tabs/{tabID}/activated         tab became active
//	DELETE /v1/tabs/{tabID}                   tab closed
//	GET    /v1/tabs                           all records
//	GET    /v1/tabs/{tabID}                   one record
//	GET    /v1/tabs/{tabID}/indicator/{size}.png
//	GET    /health
func (r *Registry) Handler() http.Handler {
	rt := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(r.logger) {
		rt.Use(mw)
	}

	rt.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case <-r.closed:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "closed"})
			return
		default:
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": r.Stats()})
	})

	rt.Route("/v1/tabs", func(rt chi.Router) {
		rt.Get("/", func(w http.ResponseWriter, req *http.Request) {
			recs, err := r.Records(req.Context())
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, recs)
		})

		rt.Route("/{tabID}", func(rt chi.Router) {
			rt.Get("/", func(w http.ResponseWriter, req *http.Request) {
				tabID := chi.URLParam(req, "tabID")
				rec, ok, err := r.Record(req.Context(), tabID)
				if err != nil {
					writeError(w, statusFor(err), err)
					return
				}
				if !ok {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "tab not found"})
					return
				}
				writeJSON(w, http.StatusOK, rec)
			})

			rt.Delete("/", func(w http.ResponseWriter, req *http.Request) {
				r.lifecycle(w, req, "removed", r.OnRemoved)
			})
			rt.Post("/updated", func(w http.ResponseWriter, req *http.Request) {
				r.lifecycle(w, req, "updated", r.ResetOnNavigationStart)
			})
			rt.Post("/activated", func(w http.ResponseWriter, req *http.Request) {
				r.lifecycle(w, req, "activated", r.OnActivated)
			})

			rt.Post("/messages", func(w http.ResponseWriter, req *http.Request) {
				tabID := chi.URLParam(req, "tabID")
				body, err := io.ReadAll(req.Body)
				if err != nil {
					writeError(w, http.StatusRequestEntityTooLarge, err)
					return
				}
				m, err := message.Decode(body)
				if err != nil {
					shield.GetLogger(req.Context()).Debug("registry: bad message", "tab", tabID, "error", err)
					writeError(w, http.StatusBadRequest, err)
					return
				}
				ctx := kit.WithTabID(req.Context(), tabID)
				if err := r.Deliver(ctx, message.Envelope{TabID: tabID, Message: m}); err != nil {
					writeError(w, statusFor(err), err)
					return
				}
				writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "count": m.Count})
			})

			rt.Get("/indicator/{size}.png", func(w http.ResponseWriter, req *http.Request) {
				tabID := chi.URLParam(req, "tabID")
				size, err := strconv.Atoi(chi.URLParam(req, "size"))
				if err != nil {
					writeError(w, http.StatusBadRequest, errors.New("size must be an integer"))
					return
				}
				rec, ok, err := r.Record(req.Context(), tabID)
				if err != nil {
					writeError(w, statusFor(err), err)
					return
				}
				if !ok {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "tab not found"})
					return
				}
				ind, err := r.Renderer().RenderCount(rec.Count)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				data, err := ind.PNG(size)
				if err != nil {
					writeError(w, http.StatusNotFound, err)
					return
				}
				w.Header().Set("Content-Type", "image/png")
				w.Header().Set("X-Indicator-State", string(ind.State))
				w.Header().Set("X-Indicator-Label", ind.Label)
				w.WriteHeader(http.StatusOK)
				w.Write(data)
			})
		})
	})
	return rt
}

func (r *Registry) lifecycle(w http.ResponseWriter, req *http.Request, event string, op func(ctx context.Context, tabID string) error) {
	tabID := chi.URLParam(req, "tabID")
	if err := op(kit.WithTabID(req.Context(), tabID), tabID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event": event})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, message.ErrNoTab), errors.Is(err, message.ErrUnknownType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
