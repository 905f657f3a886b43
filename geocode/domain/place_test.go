package domain

import (
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
)

func TestPlace_DecodesStringAndNumberCoordinates(t *testing.T) {
	var places []Place
	body := `[
		{"place_id": 1, "lat": "44.98", "lon": "-93.26"},
		{"place_id": "abc", "lat": 45.5, "lon": -93}
	]`
	if err := json.Unmarshal([]byte(body), &places); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}
	if places[0].ID() != "1" || places[0].Lat() != 44.98 || places[0].Lon() != -93.26 {
		t.Fatalf("unexpected first place: id=%q lat=%v lon=%v", places[0].ID(), places[0].Lat(), places[0].Lon())
	}
	if places[1].ID() != "abc" || places[1].Lat() != 45.5 || places[1].Lon() != -93 {
		t.Fatalf("unexpected second place: id=%q lat=%v lon=%v", places[1].ID(), places[1].Lat(), places[1].Lon())
	}
}

func TestPlace_ToleratesMalformedFields(t *testing.T) {
	var p Place
	body := `{
		"place_id": null,
		"lat": "not-a-number",
		"lon": {"x": 1},
		"display_name": ["a"],
		"type": 7,
		"importance": null,
		"address": "Main St"
	}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.HasID() {
		t.Fatalf("expected place_id key to count as present even when null")
	}
	if p.Lat() != 0 || p.Lon() != 0 {
		t.Fatalf("expected coordinates to default to 0, got %v,%v", p.Lat(), p.Lon())
	}
	if p.DisplayName() != "" {
		t.Fatalf("expected empty display name, got %q", p.DisplayName())
	}
	if p.Type() != "7" {
		t.Fatalf("expected numeric type to be kept as text, got %q", p.Type())
	}
	if p.Importance() != DefaultImportance {
		t.Fatalf("expected default importance, got %v", p.Importance())
	}
	if p.Address().Road() != "" {
		t.Fatalf("expected non-object address to decode empty")
	}
}

func TestPlace_NonObjectElementDecodesEmpty(t *testing.T) {
	var places []Place
	if err := json.Unmarshal([]byte(`[42, "x", null, {"place_id": 9}]`), &places); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 4 {
		t.Fatalf("expected 4 places, got %d", len(places))
	}
	if places[0].HasID() || places[1].HasID() || places[2].HasID() {
		t.Fatalf("expected non-object elements to have no id")
	}
	if places[3].ID() != "9" {
		t.Fatalf("expected id 9, got %q", places[3].ID())
	}
}

func TestPlace_MissingIDIsAbsent(t *testing.T) {
	var p Place
	if err := json.Unmarshal([]byte(`{"error": "Unable to geocode"}`), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasID() {
		t.Fatalf("expected HasID=false")
	}
}

func TestPlace_CategoryFallsBackForClass(t *testing.T) {
	var p Place
	if err := json.Unmarshal([]byte(`{"category": "highway", "type": "residential"}`), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Class() != "highway" {
		t.Fatalf("expected class from category, got %q", p.Class())
	}
}

func TestAddress_Accessors(t *testing.T) {
	var p Place
	body := `{"address": {
		"house_number": "123", "road": "Main St", "city": "Minneapolis",
		"county": "Hennepin", "state": "Minnesota", "state_code": "MN",
		"postcode": 55401, "country": "United States", "country_code": "us"
	}}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := p.Address()
	got := strings.Join([]string{
		a.HouseNumber(), a.Road(), a.City(), a.County(), a.State(),
		a.StateCode(), a.Postcode(), a.Country(), a.CountryCode(),
	}, "|")
	want := "123|Main St|Minneapolis|Hennepin|Minnesota|MN|55401|United States|us"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{Endpoint: "search", Status: 503, Body: " overloaded \n"}
	if got := err.Error(); got != "upstream search: status 503: overloaded" {
		t.Fatalf("unexpected message %q", got)
	}

	decodeErr := errors.New("unexpected end of JSON input")
	err = &UpstreamError{Endpoint: "reverse", Status: 200, Err: decodeErr}
	if !errors.Is(err, decodeErr) {
		t.Fatalf("expected UpstreamError to unwrap the decode error")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestTransportError_Timeout(t *testing.T) {
	err := &TransportError{Endpoint: "search", Err: timeoutErr{}}
	if !err.Timeout() {
		t.Fatalf("expected Timeout=true")
	}
	if (&TransportError{Endpoint: "search", Err: errors.New("refused")}).Timeout() {
		t.Fatalf("expected Timeout=false")
	}
}
