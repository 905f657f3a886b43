package application

import (
	"iter"
	"net/url"
	"strconv"
	"strings"

	"nominatim-proxy/geocode/domain"
)

const (
	// DefaultViewbox cobre a região metropolitana de Minneapolis (oeste,norte,leste,sul).
	DefaultViewbox      = "-93.8,45.2,-92.8,44.7"
	DefaultCountryCodes = "us"

	// ReverseZoom favorece resultados no nível de edifício/endereço.
	ReverseZoom = 18
)

// Bias restringe e orienta a busca direta. O viewbox é só preferência (bounded=0).
type Bias struct {
	Viewbox      string
	CountryCodes string
}

// DefaultBias devolve o viewbox e o país padrão do deployment.
func DefaultBias() Bias {
	return Bias{Viewbox: DefaultViewbox, CountryCodes: DefaultCountryCodes}
}

// SearchParams monta os parâmetros do /search do Nominatim.
// q.Focus é ignorado de propósito.
func SearchParams(q domain.InboundQuery, bias Bias) url.Values {
	if bias.Viewbox == "" {
		bias.Viewbox = DefaultViewbox
	}
	if bias.CountryCodes == "" {
		bias.CountryCodes = DefaultCountryCodes
	}
	return url.Values{
		"q":              {q.Text},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {strconv.Itoa(q.Size)},
		"countrycodes":   {bias.CountryCodes},
		"viewbox":        {bias.Viewbox},
		"bounded":        {"0"},
	}
}

// ReverseParams monta os parâmetros do /reverse do Nominatim.
func ReverseParams(p domain.Point) url.Values {
	return url.Values{
		"lat":            {formatCoord(p.Lat)},
		"lon":            {formatCoord(p.Lon)},
		"format":         {"json"},
		"addressdetails": {"1"},
		"zoom":           {strconv.Itoa(ReverseZoom)},
	}
}

// Classify decide o layer Pelias. A primeira regra que casar vence, e a ordem
// importa: número de casa ganha de qualquer classificação administrativa.
func Classify(p domain.Place) domain.Layer {
	switch {
	case p.Address().HouseNumber() != "":
		return domain.LayerAddress
	case p.Class() == "highway":
		return domain.LayerStreet
	}
	switch p.Type() {
	case "city", "town", "village", "hamlet":
		return domain.LayerLocality
	case "administrative":
		return domain.LayerRegion
	}
	return domain.LayerVenue
}

// Name monta o nome exibido: "número rua", só a rua, ou o display_name inteiro.
func Name(p domain.Place) string {
	addr := p.Address()
	var parts []string
	if hn := addr.HouseNumber(); hn != "" {
		parts = append(parts, hn)
	}
	if road := addr.Road(); road != "" {
		parts = append(parts, road)
	}
	if len(parts) == 0 {
		return p.DisplayName()
	}
	return strings.Join(parts, " ")
}

// ToFeature traduz um resultado do Nominatim em Feature Pelias. Nunca falha:
// campos ausentes viram padrão ou são omitidos.
func ToFeature(p domain.Place) domain.Feature {
	layer := Classify(p)
	addr := p.Address()

	props := domain.Properties{
		ID:         domain.Source + ":" + p.ID(),
		GID:        domain.Source + ":" + string(layer) + ":" + p.ID(),
		Layer:      layer,
		Source:     domain.Source,
		Name:       Name(p),
		Label:      p.DisplayName(),
		Confidence: p.Importance(),

		HouseNumber: addr.HouseNumber(),
		Street:      addr.Road(),
		Locality:    firstNonEmpty(addr.City(), addr.Town(), addr.Village()),
		County:      addr.County(),
		Region:      addr.State(),
		RegionA:     addr.StateCode(),
		PostalCode:  addr.Postcode(),
		Country:     addr.Country(),
		CountryA:    strings.ToUpper(addr.CountryCode()),
	}

	return domain.Feature{
		Type: "Feature",
		Geometry: domain.Geometry{
			Type:        "Point",
			Coordinates: [2]float64{p.Lon(), p.Lat()},
		},
		Properties: props,
	}
}

// Features devolve uma sequência preguiçosa com uma Feature por resultado,
// na ordem de entrada. Pode ser percorrida mais de uma vez.
func Features(places []domain.Place) iter.Seq[domain.Feature] {
	return func(yield func(domain.Feature) bool) {
		for _, p := range places {
			if !yield(ToFeature(p)) {
				return
			}
		}
	}
}

// NewFeatureCollection materializa a sequência no corpo de resposta.
func NewFeatureCollection(features iter.Seq[domain.Feature]) domain.FeatureCollection {
	out := make([]domain.Feature, 0)
	for f := range features {
		out = append(out, f)
	}
	return domain.FeatureCollection{Type: "FeatureCollection", Features: out}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
