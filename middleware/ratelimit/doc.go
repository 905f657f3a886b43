// Package ratelimit fornece os middlewares net/http de proteção de entrada do proxy.
//
// Visão geral (camadas):
//
//   - domain: contratos (limiter por cliente, pool de vagas), sem net/http
//   - application: regra de admissão (allow/deny + retry-after, acquire com timeout)
//   - infra: token bucket por cliente (x/time/rate) e semáforo em channel
//   - ratelimit (este pacote): middlewares HTTP, extração da chave do cliente e
//     tradução da decisão para status/headers
//
// Fluxo no proxy:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Consulta a camada application
//  3. Se bloqueado, responde 429 (taxa) ou 503 (concorrência) com {"error": "..."}
//  4. Se permitido, segue para os handlers de geocodificação, que esperam a vez no
//     gate do Nominatim
//
// O binário cmd/proxy lê RATE_RPS, RATE_BURST, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
