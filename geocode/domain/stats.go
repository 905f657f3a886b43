package domain

import (
	"context"
	"time"
)

// Operation identifica o caso de uso atendido.
type Operation string

const (
	OpSearch       Operation = "search"
	OpAutocomplete Operation = "autocomplete"
	OpReverse      Operation = "reverse"
)

// Outcome é o desfecho de uma requisição de geocodificação.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeEmpty          Outcome = "empty"
	OutcomeUpstreamError  Outcome = "upstream_error"
	OutcomeTransportError Outcome = "transport_error"
	// OutcomeThrottled e OutcomeRejected vêm da proteção de entrada (429 e 503).
	OutcomeThrottled Outcome = "throttled"
	OutcomeRejected  Outcome = "rejected"
)

// StatsEvent registra uma requisição atendida (ou recusada) pelo proxy.
//
// Operation pode ficar vazio quando a requisição foi recusada antes do roteamento.
type StatsEvent struct {
	Operation Operation
	Outcome   Outcome
	Features  int
	At        time.Time
}

// StatsStore persiste estatísticas. Quem chama trata erro como best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
