package domain

import (
	"context"
	"time"
)

// Gate controla o ritmo das chamadas de saída.
//
// Acquire bloqueia até que a próxima chamada possa ser feita ou até o ctx encerrar,
// e devolve quanto tempo o chamador esperou.
type Gate interface {
	Acquire(ctx context.Context) (waited time.Duration, err error)
}

// Clock abstrai o tempo para que o gate possa ser testado sem dormir de verdade.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
