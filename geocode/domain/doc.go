// Package domain define os tipos e contratos do proxy de geocodificação:
// a consulta no formato Pelias, o registro devolvido pelo Nominatim, a Feature
// GeoJSON de saída e os contratos de infraestrutura (gate de saída, relógio,
// estatísticas).
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
