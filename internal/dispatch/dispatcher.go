package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/logger"
	"github.com/kailas-cloud/querydex/internal/metrics"
)

// Handler executes one action kind against its client collaborators.
type Handler interface {
	Execute(ctx context.Context, act domain.Action) (domain.Result, error)
}

// Dispatcher routes actions to the handler registered for their kind and
// normalizes every outcome into an ActionResponse. The registry is frozen
// after construction, so a Dispatcher is safe for unlimited concurrent use.
//
// Adding an action kind means registering one more handler; nothing here
// or in existing handlers changes.
type Dispatcher struct {
	handlers map[domain.Kind]Handler
	logger   *zap.Logger
}

// New creates a dispatcher over the given registry. The map is copied;
// later mutation of the argument does not affect the dispatcher.
func New(handlers map[domain.Kind]Handler, logger *zap.Logger) *Dispatcher {
	registry := make(map[domain.Kind]Handler, len(handlers))
	for kind, h := range handlers {
		registry[kind] = h
	}
	return &Dispatcher{handlers: registry, logger: logger}
}

// Dispatch runs the action and wraps the outcome into the uniform
// response envelope. Handler errors and panics never escape.
func (d *Dispatcher) Dispatch(ctx context.Context, act domain.Action) domain.ActionResponse {
	start := time.Now()

	resp := d.dispatch(ctx, act)

	status := "success"
	if !resp.Success {
		status = resp.Error.Code
	}
	metrics.ActionsTotal.WithLabelValues(string(act.Kind), status).Inc()
	metrics.ActionDuration.WithLabelValues(string(act.Kind)).Observe(time.Since(start).Seconds())

	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, act domain.Action) (resp domain.ActionResponse) {
	// Prefer the request-scoped logger installed by the HTTP middleware.
	log := logger.FromContext(ctx, d.logger)

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic recovered",
				zap.String("request_id", act.RequestID),
				zap.String("kind", string(act.Kind)),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
			resp = failure(act, domain.ErrorDetail{
				Code:    domain.CodeInternal,
				Message: "internal error",
			})
		}
	}()

	handler, ok := d.handlers[act.Kind]
	if !ok {
		return failure(act, domain.Detail(
			fmt.Errorf("%w: unknown action kind %q", domain.ErrUnsupportedAction, act.Kind),
		))
	}

	result, err := handler.Execute(ctx, act)
	if err != nil {
		detail := domain.Detail(err)
		log.Warn("action failed",
			zap.String("request_id", act.RequestID),
			zap.String("kind", string(act.Kind)),
			zap.String("code", detail.Code),
			zap.Error(err),
		)
		return failure(act, detail)
	}

	return domain.ActionResponse{
		RequestID: act.RequestID,
		Success:   true,
		Result:    result,
	}
}

func failure(act domain.Action, detail domain.ErrorDetail) domain.ActionResponse {
	return domain.ActionResponse{
		RequestID: act.RequestID,
		Success:   false,
		Error:     &detail,
	}
}
