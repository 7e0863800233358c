package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/resilience"
)

const DefaultForwardSubject = "portal.submission.forwarded"

type publisher interface {
	Publish(subject string, data []byte) error
}

// ForwardPublisher announces forwarded submissions on a NATS subject.
type ForwardPublisher struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	guard   *resilience.Guard
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	Guard                *resilience.Guard
}

func New(url, subject string) (*ForwardPublisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*ForwardPublisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	if subject == "" {
		subject = DefaultForwardSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("policy-upload-portal"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &ForwardPublisher{
		conn:    conn,
		pub:     conn,
		subject: subject,
		guard:   options.Guard,
	}, nil
}

func (p *ForwardPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}

func (p *ForwardPublisher) PublishSubmissionForwarded(ctx context.Context, event domain.ForwardEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal forward event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.pub.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.guard != nil {
		err = p.guard.Do(ctx, "nats.publish_forwarded", publishVerdict, call)
	} else {
		err = call(ctx)
	}
	return asTemporary(err)
}

// NoopNotifier is used when no broker is configured.
type NoopNotifier struct{}

func (NoopNotifier) PublishSubmissionForwarded(context.Context, domain.ForwardEvent) error {
	return nil
}
