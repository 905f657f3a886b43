package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"nominatim-proxy/geocode/application"
	"nominatim-proxy/geocode/infra"
)

type config struct {
	listenAddr string

	nominatimURL          string
	nominatimUserAgent    string
	nominatimMinInterval  time.Duration
	nominatimTimeout      time.Duration
	nominatimGateTimeout  time.Duration
	nominatimViewbox      string
	nominatimCountryCodes string

	rateEnabled        bool
	rateRPS            float64
	rateBurst          int
	rateKeyHeader      string
	trustXFF           bool
	retryAfter         time.Duration
	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string

	corsOrigins []string

	logLevel  string
	logFormat string
}

func readConfig() (config, error) {
	e := &envReader{}

	cfg := config{}
	cfg.listenAddr = e.getString("LISTEN_ADDR", ":8001")

	cfg.nominatimURL = e.getString("NOMINATIM_URL", infra.DefaultBaseURL)
	cfg.nominatimUserAgent = e.getString("NOMINATIM_USER_AGENT", infra.DefaultUserAgent)
	cfg.nominatimMinInterval = e.getDuration("NOMINATIM_MIN_INTERVAL", infra.DefaultMinInterval)
	cfg.nominatimTimeout = e.getDuration("NOMINATIM_TIMEOUT", infra.DefaultTimeout)
	cfg.nominatimGateTimeout = e.getDuration("NOMINATIM_GATE_TIMEOUT", infra.DefaultGateTimeout)
	cfg.nominatimViewbox = e.getString("NOMINATIM_VIEWBOX", application.DefaultViewbox)
	cfg.nominatimCountryCodes = e.getString("NOMINATIM_COUNTRYCODES", application.DefaultCountryCodes)

	cfg.rateEnabled = e.getBool("RATE_ENABLED", true)
	cfg.rateRPS = e.getFloat("RATE_RPS", 5)
	cfg.rateBurst = e.getInt("RATE_BURST", 10)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = e.getBool("TRUST_XFF", false)
	cfg.retryAfter = e.getDuration("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = e.getBool("ADD_RATELIMIT_HEADERS", false)
	// CONCURRENCY_MAX limita quantas requisições esperam na fila do gate e
	// NOMINATIM_GATE_TIMEOUT quanto cada uma espera.
	cfg.concurrencyMax = e.getInt("CONCURRENCY_MAX", 32)
	cfg.concurrencyTimeout = e.getDuration("CONCURRENCY_TIMEOUT", 15*time.Second)

	cfg.statsEnabled = e.getBool("STATS_ENABLED", false)
	cfg.statsRedisAddr = e.getString("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = e.getInt("STATS_REDIS_DB", 0)
	cfg.statsPrefix = e.getString("STATS_PREFIX", "geocode:stats")
	cfg.statsTTL = e.getDuration("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = e.getString("STATS_BUCKET", "minute")

	cfg.corsOrigins = splitList(e.getString("CORS_ORIGINS", "*"))

	cfg.logLevel = e.getString("LOG_LEVEL", "info")
	cfg.logFormat = e.getString("LOG_FORMAT", "json")

	if e.err != nil {
		return config{}, e.err
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	u, err := url.Parse(c.nominatimURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("NOMINATIM_URL must be an absolute http(s) URL, got %q", c.nominatimURL)
	}
	if strings.TrimSpace(c.nominatimUserAgent) == "" {
		return errors.New("NOMINATIM_USER_AGENT must not be empty")
	}
	if c.nominatimMinInterval <= 0 {
		return errors.New("NOMINATIM_MIN_INTERVAL must be > 0")
	}
	if c.nominatimTimeout <= 0 {
		return errors.New("NOMINATIM_TIMEOUT must be > 0")
	}
	if c.nominatimGateTimeout <= 0 {
		return errors.New("NOMINATIM_GATE_TIMEOUT must be > 0")
	}
	if err := validateViewbox(c.nominatimViewbox); err != nil {
		return err
	}
	if c.rateRPS <= 0 {
		return errors.New("RATE_RPS must be > 0")
	}
	if c.rateBurst <= 0 {
		return errors.New("RATE_BURST must be > 0")
	}
	if c.concurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.concurrencyMax > 0 && c.concurrencyTimeout <= 0 {
		return errors.New("CONCURRENCY_TIMEOUT must be > 0 when CONCURRENCY_MAX > 0")
	}
	if c.statsEnabled && strings.TrimSpace(c.statsRedisAddr) == "" {
		return errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	if len(c.corsOrigins) == 0 {
		return errors.New("CORS_ORIGINS must list at least one origin")
	}
	return nil
}

// writeTimeoutMargin cobre a escrita da resposta depois da última espera.
const writeTimeoutMargin = 5 * time.Second

// writeTimeout é o pior caso de uma requisição de geocodificação: vaga na
// concorrência, vez no gate e chamada ao upstream, mais a margem. Abaixo disso
// o cliente teria a conexão cortada em vez do erro JSON.
func (c config) writeTimeout() time.Duration {
	return c.concurrencyTimeout + c.nominatimGateTimeout + c.nominatimTimeout + writeTimeoutMargin
}

// validateViewbox exige "oeste,norte,leste,sul" com quatro números.
func validateViewbox(v string) error {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return fmt.Errorf("NOMINATIM_VIEWBOX must have 4 comma-separated numbers, got %q", v)
	}
	for _, p := range parts {
		if _, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
			return fmt.Errorf("NOMINATIM_VIEWBOX: %q is not a number", p)
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envReader lê variáveis com default e guarda os erros de parse, para que um
// valor inválido aborte o startup em vez de cair no default.
type envReader struct {
	err error
}

func (e *envReader) fail(k, v string, err error) {
	e.err = errors.Join(e.err, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (e *envReader) getString(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return i
}

func (e *envReader) getFloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return f
}

func (e *envReader) getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return b
}

func (e *envReader) getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return d
}
