// Package application contém a regra de admissão da entrada: decisão de taxa
// (allow/deny + retry-after) e aquisição de vaga com timeout.
//
// Depende só do pacote domain e não conhece net/http.
package application
