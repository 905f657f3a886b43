package domain

import "fmt"

// Point é uma coordenada WGS84.
type Point struct {
	Lat float64
	Lon float64
}

// InboundQuery é a consulta recebida no formato Pelias.
//
// Focus é aceito e validado, mas não entra nos parâmetros enviados ao upstream.
type InboundQuery struct {
	Text  string
	Size  int
	Focus *Point
	// Point só é usado no reverse.
	Point Point
}

// QueryError indica um parâmetro de entrada ausente ou inválido.
type QueryError struct {
	Param  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}
