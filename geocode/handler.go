package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"nominatim-proxy/geocode/domain"
)

const serviceName = "nominatim-proxy"

// Geocoder é o caso de uso consumido pelo Handler (application.Service).
type Geocoder interface {
	Search(ctx context.Context, op domain.Operation, q domain.InboundQuery) (domain.FeatureCollection, error)
	Reverse(ctx context.Context, q domain.InboundQuery) (domain.FeatureCollection, error)
}

type Handler struct {
	geocoder Geocoder
	logger   *slog.Logger
}

func NewHandler(g Geocoder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{geocoder: g, logger: logger}
}

// Routes registra as rotas /v1/* e os aliases sem prefixo.
func (h *Handler) Routes(mux *http.ServeMux) {
	for _, prefix := range []string{"/v1", ""} {
		mux.HandleFunc("GET "+prefix+"/autocomplete", h.search(domain.OpAutocomplete))
		mux.HandleFunc("GET "+prefix+"/search", h.search(domain.OpSearch))
		mux.HandleFunc("GET "+prefix+"/reverse", h.Reverse)
	}
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) search(op domain.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ParseSearchQuery(r.URL.Query())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		fc, err := h.geocoder.Search(r.Context(), op, q)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fc)
	}
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	q, err := ParseReverseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fc, err := h.geocoder.Reverse(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// fail converte o erro em resposta: parâmetro inválido vira 400, o resto 500
// com a mensagem do upstream.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var qErr *domain.QueryError
	if errors.As(err, &qErr) {
		writeError(w, http.StatusBadRequest, qErr.Error())
		return
	}
	if r.Context().Err() != nil {
		h.logger.InfoContext(r.Context(), "client went away", slog.String("path", r.URL.Path))
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
