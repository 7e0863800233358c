package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/resilience"
)

// brokerUnavailable lists the errors that mean "try again later" rather than "this
// message can never be published".
func brokerUnavailable(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionReconnecting)
}

func publishVerdict(err error) resilience.Verdict {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Abort
	case brokerUnavailable(err):
		return resilience.Retry
	default:
		return resilience.Fail
	}
}

// asTemporary marks outages as ErrTemporary so the forward still succeeds and the
// failure is only logged by the caller.
func asTemporary(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsOpen(err) || brokerUnavailable(err) {
		return domain.WrapError(domain.ErrTemporary, "publish forward event", err)
	}
	return err
}
