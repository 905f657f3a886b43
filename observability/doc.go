// Package observability monta o logger estruturado (log/slog) e os coletores
// Prometheus do proxy.
package observability
