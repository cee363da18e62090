package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coresight/coresight/internal/apperror"
	"github.com/coresight/coresight/internal/models"
	"github.com/coresight/coresight/internal/store"
	"github.com/coresight/coresight/internal/telemetry"
)

// ProviderTypes lists the notification channels the dispatcher can build.
var ProviderTypes = []string{"twilio", "pushover", "smtp", "shoutrrr", "mqtt", "amqp"}

const (
	sendTimeout = 30 * time.Second
	// MaxNotifyAttempts bounds the failed delivery rounds for one alert.
	MaxNotifyAttempts = 8
	maxRetryDelay     = time.Hour
)

// Dispatcher delivers notices through the enabled providers, remembering
// which providers accepted each alert.
type Dispatcher struct {
	store   store.Store
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewDispatcher(st store.Store, logger *slog.Logger, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{store: st, logger: logger, metrics: metrics, now: time.Now}
}

// retryDelay doubles from one minute with each failed round, up to an hour.
func retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 7 {
		return maxRetryDelay
	}
	return min(time.Minute<<(attempts-1), maxRetryDelay)
}

// Dispatch sends alert through every enabled provider that has not
// accepted it yet. The alert is marked notified once all have; otherwise
// the failed round is counted and the alert waits out a backoff before
// the next sweep retries the remaining providers.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert) error {
	providers, err := d.store.GetEnabledProviders(ctx)
	if err != nil {
		return fmt.Errorf("get providers: %w", err)
	}

	if len(providers) == 0 {
		d.logger.Debug("no alert providers configured, skipping dispatch")
		return d.store.MarkAlertNotified(ctx, alert.ID)
	}

	delivered, err := d.store.DeliveredProviders(ctx, alert.ID)
	if err != nil {
		return fmt.Errorf("get deliveries: %w", err)
	}
	notice := d.notice(ctx, alert, false)

	var errs []error
	for _, ap := range providers {
		if delivered[ap.ID] {
			continue
		}
		if err := d.send(ctx, ap, notice); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.store.RecordDelivery(ctx, alert.ID, ap.ID); err != nil {
			errs = append(errs, fmt.Errorf("record delivery to %s: %w", ap.Name, err))
		}
	}

	if len(errs) == 0 {
		if err := d.store.MarkAlertNotified(ctx, alert.ID); err != nil {
			return fmt.Errorf("mark alert notified: %w", err)
		}
		return nil
	}

	attempts := alert.NotifyAttempts + 1
	if err := d.store.RecordNotifyFailure(ctx, alert.ID, d.now().Add(retryDelay(attempts))); err != nil {
		errs = append(errs, fmt.Errorf("record notify failure: %w", err))
	}
	if attempts >= MaxNotifyAttempts {
		d.logger.Error("giving up on alert notification", "alert_id", alert.ID, "attempts", attempts)
	}
	return errors.Join(errs...)
}

// DispatchResolved announces a resolved alert to the providers that
// carried it. Recoveries are sent once and never retried.
func (d *Dispatcher) DispatchResolved(ctx context.Context, alert *models.Alert) error {
	delivered, err := d.store.DeliveredProviders(ctx, alert.ID)
	if err != nil {
		return fmt.Errorf("get deliveries: %w", err)
	}
	if len(delivered) == 0 {
		return nil
	}
	providers, err := d.store.GetEnabledProviders(ctx)
	if err != nil {
		return fmt.Errorf("get providers: %w", err)
	}

	notice := d.notice(ctx, alert, true)
	var errs []error
	for _, ap := range providers {
		if !delivered[ap.ID] {
			continue
		}
		if err := d.send(ctx, ap, notice); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notice attaches the entity to alert. A missing entity only costs the
// name in the message.
func (d *Dispatcher) notice(ctx context.Context, alert *models.Alert, resolved bool) *Notice {
	e, err := d.store.GetEntity(ctx, alert.EntityID)
	if err != nil {
		d.logger.Warn("failed to load alert entity", "alert_id", alert.ID, "entity_id", alert.EntityID, "err", err)
	}
	return NewNotice(alert, e, resolved)
}

func (d *Dispatcher) send(ctx context.Context, ap models.AlertProvider, n *Notice) error {
	provider, err := ResolveProvider(ap.Type, ap.Config)
	if err != nil {
		d.logger.Error("failed to resolve provider", "name", ap.Name, "type", ap.Type, "err", err)
		return fmt.Errorf("provider %s: %w", ap.Name, err)
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err = provider.Send(sendCtx, n)
	cancel()
	d.metrics.Notification(provider.Name(), err)
	if err != nil {
		d.logger.Error("failed to send alert", "provider", ap.Name, "alert_id", n.Alert.ID, "resolved", n.Resolved, "err", err)
		return fmt.Errorf("provider %s: %w", ap.Name, err)
	}
	d.logger.Info("alert sent", "provider", ap.Name, "alert_id", n.Alert.ID, "alert_type", n.Alert.Type, "resolved", n.Resolved)
	return nil
}

// ResolveProvider builds a Provider from its stored type and JSON config.
func ResolveProvider(providerType, config string) (Provider, error) {
	var p Provider
	switch providerType {
	case "twilio":
		p = &TwilioProvider{}
	case "pushover":
		p = &PushoverProvider{}
	case "smtp":
		p = &SMTPProvider{}
	case "shoutrrr":
		p = &ShoutrrrProvider{}
	case "mqtt":
		p = &MQTTProvider{}
	case "amqp":
		p = &AMQPProvider{}
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	if config == "" {
		config = "{}"
	}
	if err := json.Unmarshal([]byte(config), p); err != nil {
		return nil, fmt.Errorf("parse %s config: %w", providerType, err)
	}
	return p, nil
}

// SendTestAlert sends a test notification through a specific provider.
func (d *Dispatcher) SendTestAlert(ctx context.Context, providerID int64) (*models.TestAlertResult, error) {
	const op = "alerting.SendTestAlert"
	ap, err := d.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if ap == nil {
		return nil, apperror.New(apperror.NotFound, op, fmt.Errorf("provider %d not found", providerID)).
			WithMessage("provider not found")
	}

	provider, err := ResolveProvider(ap.Type, ap.Config)
	if err != nil {
		return nil, apperror.New(apperror.InvalidInput, op, err).WithMessage(err.Error())
	}
	if err := provider.Validate(); err != nil {
		msg := fmt.Sprintf("invalid %s config: %v", ap.Type, err)
		return nil, apperror.New(apperror.InvalidInput, op, err).WithMessage(msg)
	}

	testAlert := &models.Alert{
		Type:      "test",
		Severity:  models.SeverityLow,
		Message:   "This is a test alert from CoreSight.",
		Status:    models.AlertActive,
		CreatedAt: time.Now().UTC(),
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err = provider.Send(sendCtx, NewNotice(testAlert, nil, false))
	d.metrics.Notification(provider.Name(), err)
	if err != nil {
		return nil, fmt.Errorf("send test alert via %s: %w", ap.Name, err)
	}
	return &models.TestAlertResult{
		Provider: ap.Type,
		Message:  fmt.Sprintf("%s accepted test alert", ap.Type),
	}, nil
}
