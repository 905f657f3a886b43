// Package application contém os casos de uso do proxy: o tradutor de schema
// (Pelias <-> Nominatim) e o Service que orquestra upstream, tradução e estatísticas.
//
// O tradutor é composto de funções puras; nada aqui conhece net/http.
package application
