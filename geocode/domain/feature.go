package domain

// Source é a tag de origem usada nos ids de saída.
const Source = "nominatim"

// Layer é a categoria Pelias de um resultado.
type Layer string

const (
	LayerAddress  Layer = "address"
	LayerStreet   Layer = "street"
	LayerLocality Layer = "locality"
	LayerRegion   Layer = "region"
	LayerVenue    Layer = "venue"
)

// Feature é uma GeoJSON Feature no formato Pelias.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry é sempre um Point em [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties segue a ordem de chaves do Pelias. Campos de endereço ausentes
// no upstream são omitidos da saída.
type Properties struct {
	ID         string  `json:"id"`
	GID        string  `json:"gid"`
	Layer      Layer   `json:"layer"`
	Source     string  `json:"source"`
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`

	HouseNumber string `json:"housenumber,omitempty"`
	Street      string `json:"street,omitempty"`
	Locality    string `json:"locality,omitempty"`
	County      string `json:"county,omitempty"`
	Region      string `json:"region,omitempty"`
	RegionA     string `json:"region_a,omitempty"`
	PostalCode  string `json:"postalcode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryA    string `json:"country_a,omitempty"`
}

// FeatureCollection é o corpo de resposta de search, autocomplete e reverse.
// Features nunca deve ser nil para serializar como [].
type FeatureCollection struct {
	Type     string      `json:"type"`
	Features []Feature   `json:"features"`
	BBox     *[4]float64 `json:"bbox"`
}
