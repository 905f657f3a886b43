// Command geocode faz uma consulta direta ou reversa pelo mesmo caminho do
// proxy (gate, cliente, tradução) e imprime a FeatureCollection em stdout.
//
//	geocode -text "123 Main St"
//	geocode -reverse -lat 44.98 -lon -93.26
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nominatim-proxy/geocode"
	"nominatim-proxy/geocode/application"
	"nominatim-proxy/geocode/domain"
	"nominatim-proxy/geocode/infra"
	"nominatim-proxy/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("geocode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("url", infra.DefaultBaseURL, "Nominatim base URL")
	userAgent := fs.String("user-agent", infra.DefaultUserAgent, "User-Agent sent upstream")
	timeout := fs.Duration("timeout", infra.DefaultTimeout, "upstream request timeout")
	viewbox := fs.String("viewbox", application.DefaultViewbox, "advisory bounding box (west,north,east,south)")
	text := fs.String("text", "", "free-text query (forward search)")
	autocomplete := fs.Bool("autocomplete", false, "run as autocomplete (same upstream query; reported as autocomplete by -stats)")
	reverse := fs.Bool("reverse", false, "reverse lookup using -lat/-lon")
	lat := fs.String("lat", "", "latitude for -reverse")
	lon := fs.String("lon", "", "longitude for -reverse")
	size := fs.String("size", "", "result count (default 10, or 1 for -reverse)")
	pretty := fs.Bool("pretty", true, "indent JSON output")
	showStats := fs.Bool("stats", false, "print the recorded operation/outcome counters to stderr")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// A validação é a mesma dos endpoints HTTP.
	params := url.Values{}
	setIf(params, "text", *text)
	setIf(params, "point.lat", *lat)
	setIf(params, "point.lon", *lon)
	setIf(params, "size", *size)

	var q domain.InboundQuery
	var err error
	if *reverse {
		q, err = geocode.ParseReverseQuery(params)
	} else {
		q, err = geocode.ParseSearchQuery(params)
	}
	if err != nil {
		fmt.Fprintf(stderr, "geocode: %v\n", err)
		return 2
	}

	logger := observability.NewLogger(observability.LogConfig{Level: *logLevel, Format: "text", Output: stderr})
	stats := infra.NewMemoryStatsStore()
	svc := application.Service{
		Upstream: infra.NewClient(*baseURL, infra.NewIntervalGate(infra.DefaultMinInterval),
			infra.WithUserAgent(*userAgent),
			infra.WithTimeout(*timeout),
		),
		Bias:   application.Bias{Viewbox: *viewbox, CountryCodes: application.DefaultCountryCodes},
		Stats:  stats,
		Logger: logger,
		Now:    time.Now,
	}

	var fc domain.FeatureCollection
	switch {
	case *reverse:
		fc, err = svc.Reverse(ctx, q)
	case *autocomplete:
		fc, err = svc.Search(ctx, domain.OpAutocomplete, q)
	default:
		fc, err = svc.Search(ctx, domain.OpSearch, q)
	}
	if *showStats {
		printStats(stderr, stats)
	}
	if err != nil {
		fmt.Fprintf(stderr, "geocode: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(fc); err != nil {
		fmt.Fprintf(stderr, "geocode: write output: %v\n", err)
		return 1
	}
	return 0
}

func printStats(w io.Writer, stats *infra.MemoryStatsStore) {
	for op, c := range stats.ByOperation() {
		for outcome, n := range c.Outcomes {
			fmt.Fprintf(w, "operation=%s outcome=%s count=%d features=%d\n", op, outcome, n, c.Features)
		}
	}
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
