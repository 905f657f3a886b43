package geocode

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"nominatim-proxy/geocode/domain"
)

const (
	DefaultSearchSize  = 10
	DefaultReverseSize = 1
)

const (
	paramText     = "text"
	paramSize     = "size"
	paramFocusLat = "focus.point.lat"
	paramFocusLon = "focus.point.lon"
	paramPointLat = "point.lat"
	paramPointLon = "point.lon"
)

// ParseSearchQuery lê text, size e o focus point (opcional; só vale com lat e lon).
func ParseSearchQuery(v url.Values) (domain.InboundQuery, error) {
	text := strings.TrimSpace(v.Get(paramText))
	if text == "" {
		return domain.InboundQuery{}, &domain.QueryError{Param: paramText, Reason: "required"}
	}

	size, err := parseSize(v, DefaultSearchSize)
	if err != nil {
		return domain.InboundQuery{}, err
	}

	lat, hasLat, err := optCoord(v, paramFocusLat, 90)
	if err != nil {
		return domain.InboundQuery{}, err
	}
	lon, hasLon, err := optCoord(v, paramFocusLon, 180)
	if err != nil {
		return domain.InboundQuery{}, err
	}

	q := domain.InboundQuery{Text: text, Size: size}
	if hasLat && hasLon {
		q.Focus = &domain.Point{Lat: lat, Lon: lon}
	}
	return q, nil
}

// ParseReverseQuery lê point.lat, point.lon (obrigatórios) e size.
func ParseReverseQuery(v url.Values) (domain.InboundQuery, error) {
	lat, ok, err := optCoord(v, paramPointLat, 90)
	if err != nil {
		return domain.InboundQuery{}, err
	}
	if !ok {
		return domain.InboundQuery{}, &domain.QueryError{Param: paramPointLat, Reason: "required"}
	}
	lon, ok, err := optCoord(v, paramPointLon, 180)
	if err != nil {
		return domain.InboundQuery{}, err
	}
	if !ok {
		return domain.InboundQuery{}, &domain.QueryError{Param: paramPointLon, Reason: "required"}
	}

	size, err := parseSize(v, DefaultReverseSize)
	if err != nil {
		return domain.InboundQuery{}, err
	}
	return domain.InboundQuery{Size: size, Point: domain.Point{Lat: lat, Lon: lon}}, nil
}

func parseSize(v url.Values, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(paramSize))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.QueryError{Param: paramSize, Reason: "must be an integer"}
	}
	if n < 1 {
		return 0, &domain.QueryError{Param: paramSize, Reason: "must be >= 1"}
	}
	return n, nil
}

func optCoord(v url.Values, param string, limit float64) (float64, bool, error) {
	raw := strings.TrimSpace(v.Get(param))
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, &domain.QueryError{Param: param, Reason: "must be a number"}
	}
	if f < -limit || f > limit {
		return 0, false, &domain.QueryError{Param: param, Reason: "out of range"}
	}
	return f, true, nil
}
