// Package domain define os contratos da proteção de entrada do proxy: limite de
// taxa por cliente e limite de requisições simultâneas.
//
// Como toda chamada ao Nominatim passa por um gate global de 1 chamada/s,
// requisições em excesso ficam enfileiradas; estes contratos limitam quanto
// cada cliente pode empurrar para essa fila e quantas podem esperar ao mesmo tempo.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
