// Servidor falso do Nominatim para validar o proxy localmente.
//
// Responde /search e /reverse com dados fixos de Minneapolis e devolve 429
// quando duas chamadas chegam com menos de MIN_INTERVAL entre si, como faz o
// serviço público. Rode o proxy com NOMINATIM_URL=http://localhost:8081.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

var places = []map[string]any{
	{
		"place_id":     1,
		"lat":          "44.98",
		"lon":          "-93.26",
		"display_name": "123 Main St, Minneapolis, MN 55401, USA",
		"type":         "house",
		"class":        "building",
		"importance":   0.8,
		"address": map[string]any{
			"house_number": "123",
			"road":         "Main St",
			"city":         "Minneapolis",
			"county":       "Hennepin County",
			"state":        "Minnesota",
			"postcode":     "55401",
			"country":      "United States",
			"country_code": "us",
		},
	},
	{
		"place_id":     2,
		"lat":          "44.9778",
		"lon":          "-93.2650",
		"display_name": "Minneapolis, Hennepin County, Minnesota, United States",
		"type":         "city",
		"class":        "place",
		"importance":   0.75,
		"address": map[string]any{
			"city":         "Minneapolis",
			"state":        "Minnesota",
			"country":      "United States",
			"country_code": "us",
		},
	},
	{
		"place_id":     3,
		"lat":          "44.9483",
		"lon":          "-93.2470",
		"display_name": "East Lake Street, Minneapolis, Minnesota, United States",
		"type":         "primary",
		"class":        "highway",
		"address": map[string]any{
			"road":         "East Lake Street",
			"city":         "Minneapolis",
			"state":        "Minnesota",
			"country_code": "us",
		},
	},
}

type server struct {
	logger   *slog.Logger
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// tooSoon registra a chamada e informa se ela violou o intervalo mínimo.
func (s *server) tooSoon() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	gap := now.Sub(s.last)
	violated := !s.last.IsZero() && gap < s.interval
	s.last = now
	return violated, gap
}

func (s *server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "missing User-Agent", http.StatusForbidden)
			return
		}
		if violated, gap := s.tooSoon(); violated {
			s.logger.Warn("usage policy violated", slog.Duration("gap", gap), slog.String("path", r.URL.Path))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		s.logger.Info("request", slog.String("path", r.URL.Path), slog.String("query", r.URL.RawQuery))
		next(w, r)
	}
}

func (s *server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	out := []map[string]any{}
	for _, p := range places {
		name, _ := p["display_name"].(string)
		if q == "" || strings.Contains(strings.ToLower(name), q) {
			out = append(out, p)
		}
	}
	writeJSON(w, out)
}

func (s *server) reverse(w http.ResponseWriter, r *http.Request) {
	// Fora da região conhecida o Nominatim devolve um objeto de erro com 200.
	if r.URL.Query().Get("lat") == "0" && r.URL.Query().Get("lon") == "0" {
		writeJSON(w, map[string]string{"error": "Unable to geocode"})
		return
	}
	writeJSON(w, places[0])
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	interval := time.Second
	if v := os.Getenv("MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid MIN_INTERVAL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		interval = d
	}
	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	s := &server{logger: logger, interval: interval}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", s.guard(s.search))
	mux.HandleFunc("GET /reverse", s.guard(s.reverse))

	logger.Info("fake nominatim listening", slog.String("addr", addr), slog.Duration("min_interval", interval))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
