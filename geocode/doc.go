// Package geocode é o adaptador net/http do proxy: rotas no formato Pelias,
// leitura dos parâmetros de consulta e respostas FeatureCollection.
//
// A lógica de tradução fica em geocode/application e o acesso ao Nominatim em
// geocode/infra. Este pacote só converte HTTP de/para o domínio.
package geocode
