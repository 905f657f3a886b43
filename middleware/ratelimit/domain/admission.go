package domain

import (
	"context"
	"time"
)

// ClientKey identifica um cliente (IP, header de API key etc).
type ClientKey string

// Limiter decide se o cliente pode fazer uma requisição agora.
//
// Quando nega, devolve quanto falta para a próxima vaga (0 se desconhecido).
type Limiter interface {
	AllowAt(now time.Time) (ok bool, wait time.Duration)
}

// LimiterStore obtém o limiter de um cliente. A implementação pode manter cache e TTL.
type LimiterStore interface {
	Get(ClientKey) Limiter
}

// Decision é o resultado da admissão por taxa.
type Decision struct {
	Allowed bool
	// RetryAfter é o valor para o header Retry-After quando bloquear.
	RetryAfter time.Duration
}

// SlotPool é um recurso de capacidade finita (requisições em andamento).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. O release
// devolvido deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
}
