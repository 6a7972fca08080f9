package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
	"github.com/scribeline/payment-engine/pkg/encoding"
	pkghttp "github.com/scribeline/payment-engine/pkg/http"
	"github.com/scribeline/payment-engine/pkg/observability"
)

// Emitter delivers payment events to the notification listener over signed
// HTTP posts. Emit never blocks the settlement path: events queue onto a
// buffered channel and a full buffer drops the event with a metric rather
// than stalling a webhook acknowledgment.
type Emitter struct {
	logger        *zap.Logger
	httpClient    *http.Client
	events        chan domain.PaymentEvent
	done          chan struct{}
	listenerURL   string
	signingSecret string
	closeOnce     sync.Once
}

var _ ports.EventEmitter = (*Emitter)(nil)

// NewEmitter creates a notification emitter. An empty listener URL disables
// delivery; events are consumed and dropped so settlement still runs.
func NewEmitter(cfg config.NotificationConfig, signingSecret string, logger *zap.Logger) *Emitter {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Emitter{
		logger:        logger,
		httpClient:    pkghttp.NewHTTPClient(pkghttp.WebhookClientConfig(), timeout),
		events:        make(chan domain.PaymentEvent, bufferSize),
		done:          make(chan struct{}),
		listenerURL:   cfg.ListenerURL,
		signingSecret: signingSecret,
	}
}

// Start launches the delivery worker. It drains the queue until Close is
// called and the buffer is empty.
func (e *Emitter) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case event := <-e.events:
				e.deliver(ctx, event)
			case <-e.done:
				// Deliver whatever is already queued, then stop
				for {
					select {
					case event := <-e.events:
						e.deliver(ctx, event)
					default:
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Emit queues an event for delivery. Non-blocking: a full buffer or a closed
// emitter drops the event and records the drop. The events channel is never
// closed, so callers racing a shutdown cannot panic the process.
func (e *Emitter) Emit(event domain.PaymentEvent) {
	select {
	case <-e.done:
		observability.RecordNotificationEvent(string(event.Type), "dropped")
		e.logger.Warn("emitter closed, event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("record_id", event.RecordID),
		)
		return
	default:
	}

	select {
	case e.events <- event:
		observability.RecordNotificationEvent(string(event.Type), "queued")
	default:
		observability.RecordNotificationEvent(string(event.Type), "dropped")
		e.logger.Warn("notification buffer full, event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("record_id", event.RecordID),
		)
	}
}

// Close stops accepting events. Already queued events are still delivered
// by the worker.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
}

func (e *Emitter) deliver(ctx context.Context, event domain.PaymentEvent) {
	if e.listenerURL == "" {
		return
	}

	payload, err := encoding.EncodeJSON(event)
	if err != nil {
		observability.RecordNotificationEvent(string(event.Type), "error")
		e.logger.Error("marshal notification event failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.listenerURL, bytes.NewReader(payload))
	if err != nil {
		observability.RecordNotificationEvent(string(event.Type), "error")
		e.logger.Error("build notification request failed", zap.Error(err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", e.sign(payload))
	req.Header.Set("X-Webhook-Event-Type", string(event.Type))
	req.Header.Set("X-Webhook-Timestamp", event.OccurredAt.Format(time.RFC3339))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		observability.RecordNotificationEvent(string(event.Type), "error")
		e.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("record_id", event.RecordID),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.RecordNotificationEvent(string(event.Type), "rejected")
		e.logger.Warn("notification listener rejected event",
			zap.String("event_type", string(event.Type)),
			zap.Int("status", resp.StatusCode),
		)
		return
	}

	observability.RecordNotificationEvent(string(event.Type), "delivered")
	e.logger.Debug("notification delivered",
		zap.String("event_type", string(event.Type)),
		zap.String("record_id", event.RecordID),
	)
}

// sign creates an HMAC-SHA256 signature of the payload
func (e *Emitter) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(e.signingSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced by sign. Exposed for listener
// implementations and tests.
func VerifySignature(payload []byte, signature, secret string) error {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("notification signature mismatch")
	}
	return nil
}
