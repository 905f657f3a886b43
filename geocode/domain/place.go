package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultImportance é a confiança usada quando o upstream não manda importance.
const DefaultImportance = 0.5

// Place é um resultado do Nominatim.
//
// O schema do upstream não é contratual, então a decodificação é tolerante:
// campos ausentes, nulos ou com tipo inesperado viram o valor padrão do acessor
// em vez de erro. Um elemento que nem é objeto decodifica como Place vazio.
type Place struct {
	id          optString
	lat         optFloat
	lon         optFloat
	displayName optString
	typ         optString
	class       optString
	importance  optFloat
	address     Address
}

// Address é o sub-objeto "address" (addressdetails=1).
type Address struct {
	houseNumber optString
	road        optString
	city        optString
	town        optString
	village     optString
	county      optString
	state       optString
	stateCode   optString
	postcode    optString
	country     optString
	countryCode optString
}

type placeWire struct {
	PlaceID     optString `json:"place_id"`
	Lat         optFloat  `json:"lat"`
	Lon         optFloat  `json:"lon"`
	DisplayName optString `json:"display_name"`
	Type        optString `json:"type"`
	Class       optString `json:"class"`
	Category    optString `json:"category"`
	Importance  optFloat  `json:"importance"`
	Address     Address   `json:"address"`
}

type addressWire struct {
	HouseNumber optString `json:"house_number"`
	Road        optString `json:"road"`
	City        optString `json:"city"`
	Town        optString `json:"town"`
	Village     optString `json:"village"`
	County      optString `json:"county"`
	State       optString `json:"state"`
	StateCode   optString `json:"state_code"`
	Postcode    optString `json:"postcode"`
	Country     optString `json:"country"`
	CountryCode optString `json:"country_code"`
}

func (p *Place) UnmarshalJSON(b []byte) error {
	*p = Place{}
	if !isObject(b) {
		return nil
	}
	var w placeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil
	}
	class := w.Class
	if !class.present {
		// format=jsonv2 usa "category" no lugar de "class"
		class = w.Category
	}
	*p = Place{
		id:          w.PlaceID,
		lat:         w.Lat,
		lon:         w.Lon,
		displayName: w.DisplayName,
		typ:         w.Type,
		class:       class,
		importance:  w.Importance,
		address:     w.Address,
	}
	return nil
}

func (a *Address) UnmarshalJSON(b []byte) error {
	*a = Address{}
	if !isObject(b) {
		return nil
	}
	var w addressWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil
	}
	*a = Address{
		houseNumber: w.HouseNumber,
		road:        w.Road,
		city:        w.City,
		town:        w.Town,
		village:     w.Village,
		county:      w.County,
		state:       w.State,
		stateCode:   w.StateCode,
		postcode:    w.Postcode,
		country:     w.Country,
		countryCode: w.CountryCode,
	}
	return nil
}

// HasID informa se o objeto trouxe a chave place_id (mesmo nula).
func (p Place) HasID() bool         { return p.id.present }
func (p Place) ID() string          { return p.id.value }
func (p Place) Lat() float64        { return p.lat.value }
func (p Place) Lon() float64        { return p.lon.value }
func (p Place) DisplayName() string { return p.displayName.value }
func (p Place) Type() string        { return p.typ.value }
func (p Place) Class() string       { return p.class.value }
func (p Place) Address() Address    { return p.address }

// Importance devolve a relevância do upstream ou DefaultImportance.
func (p Place) Importance() float64 {
	if !p.importance.present {
		return DefaultImportance
	}
	return p.importance.value
}

func (a Address) HouseNumber() string { return a.houseNumber.value }
func (a Address) Road() string        { return a.road.value }
func (a Address) City() string        { return a.city.value }
func (a Address) Town() string        { return a.town.value }
func (a Address) Village() string     { return a.village.value }
func (a Address) County() string      { return a.county.value }
func (a Address) State() string       { return a.state.value }
func (a Address) StateCode() string   { return a.stateCode.value }
func (a Address) Postcode() string    { return a.postcode.value }
func (a Address) Country() string     { return a.country.value }
func (a Address) CountryCode() string { return a.countryCode.value }

// optString aceita string, número ou booleano. Objetos e arrays ficam vazios.
type optString struct {
	value   string
	present bool
}

func (s *optString) UnmarshalJSON(b []byte) error {
	s.present = true
	switch v := decodeLoose(b).(type) {
	case string:
		s.value = v
	case json.Number:
		s.value = v.String()
	case bool:
		s.value = strconv.FormatBool(v)
	}
	return nil
}

// optFloat aceita número ou string numérica; qualquer outra coisa conta como ausente.
type optFloat struct {
	value   float64
	present bool
}

func (f *optFloat) UnmarshalJSON(b []byte) error {
	var raw string
	switch v := decodeLoose(b).(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	default:
		return nil
	}
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	f.value, f.present = x, true
	return nil
}

func decodeLoose(b []byte) any {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}
