// Package infra contém as implementações concretas dos contratos do pacote domain.
//
// Exemplos:
//   - IntervalGate: espaçamento mínimo global entre chamadas ao upstream
//   - Client: cliente HTTP do Nominatim (User-Agent obrigatório, timeout fixo)
//   - MemoryStatsStore / RedisStatsStore: contadores de requisições
package infra
