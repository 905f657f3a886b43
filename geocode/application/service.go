package application

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"nominatim-proxy/geocode/domain"
)

// Upstream é o cliente do Nominatim visto pelo Service.
type Upstream interface {
	Search(ctx context.Context, params url.Values) ([]domain.Place, error)
	Reverse(ctx context.Context, params url.Values) (domain.Place, error)
}

// RequestRecorder recebe uma observação por requisição (métricas).
type RequestRecorder interface {
	ObserveRequest(op domain.Operation, outcome domain.Outcome, features int)
}

// Service concentra os casos de uso de geocodificação.
//
// Uma falha do upstream descarta a consulta inteira: não há resposta parcial.
type Service struct {
	Upstream Upstream
	Bias     Bias
	Stats    domain.StatsStore
	Metrics  RequestRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Search atende search e autocomplete (mesma semântica, operações distintas nas estatísticas).
func (s Service) Search(ctx context.Context, op domain.Operation, q domain.InboundQuery) (domain.FeatureCollection, error) {
	places, err := s.Upstream.Search(ctx, SearchParams(q, s.Bias))
	if err != nil {
		s.fail(ctx, op, err)
		return domain.FeatureCollection{}, err
	}

	fc := NewFeatureCollection(Features(places))
	s.done(ctx, op, len(fc.Features))
	return fc, nil
}

// Reverse atende o reverse. Um objeto sem place_id (ex.: {"error": "Unable to geocode"})
// é uma resposta válida com zero features.
func (s Service) Reverse(ctx context.Context, q domain.InboundQuery) (domain.FeatureCollection, error) {
	place, err := s.Upstream.Reverse(ctx, ReverseParams(q.Point))
	if err != nil {
		s.fail(ctx, domain.OpReverse, err)
		return domain.FeatureCollection{}, err
	}

	var places []domain.Place
	if place.HasID() {
		places = append(places, place)
	}
	fc := NewFeatureCollection(Features(places))
	s.done(ctx, domain.OpReverse, len(fc.Features))
	return fc, nil
}

// OutcomeOf classifica um erro devolvido pelo upstream.
func OutcomeOf(err error) domain.Outcome {
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) {
		return domain.OutcomeUpstreamError
	}
	return domain.OutcomeTransportError
}

func (s Service) fail(ctx context.Context, op domain.Operation, err error) {
	s.logger().ErrorContext(ctx, "upstream request failed",
		slog.String("operation", string(op)),
		slog.String("error", err.Error()),
	)
	s.record(ctx, op, OutcomeOf(err), 0)
}

func (s Service) done(ctx context.Context, op domain.Operation, features int) {
	outcome := domain.OutcomeOK
	if features == 0 {
		outcome = domain.OutcomeEmpty
	}
	s.record(ctx, op, outcome, features)
}

func (s Service) record(ctx context.Context, op domain.Operation, outcome domain.Outcome, features int) {
	if s.Metrics != nil {
		s.Metrics.ObserveRequest(op, outcome, features)
	}
	if s.Stats == nil {
		return
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	err := s.Stats.Record(ctx, domain.StatsEvent{
		Operation: op,
		Outcome:   outcome,
		Features:  features,
		At:        now(),
	})
	if err != nil {
		s.logger().WarnContext(ctx, "stats record failed", slog.String("error", err.Error()))
	}
}

func (s Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
