package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/config"
	"github.com/scribeline/payment-engine/internal/domain"
)

const testSigningSecret = "notify_secret"

func testEvent() domain.PaymentEvent {
	return domain.PaymentEvent{
		OccurredAt:    time.Now(),
		Type:          domain.PaymentEventProcessed,
		AgreementID:   "agr-1",
		InstallmentID: "inst-1",
		RecordID:      "rec-1",
		Gateway:       domain.GatewayStripe,
		Currency:      "USD",
		PaymentStatus: domain.PaymentStatusPartial,
		Amount:        decimal.NewFromInt(100),
	}
}

func TestEmitter_DeliversSignedEvent(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte
	var gotSignature, gotEventType string
	received := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotEventType = r.Header.Get("X-Webhook-Event-Type")
		w.WriteHeader(http.StatusOK)
		close(received)
	}))
	defer server.Close()

	emitter := NewEmitter(config.NotificationConfig{
		ListenerURL:     server.URL,
		BufferSize:      8,
		DeliveryTimeout: time.Second,
	}, testSigningSecret, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter.Start(ctx)
	emitter.Emit(testEvent())

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received the event")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, VerifySignature(gotBody, gotSignature, testSigningSecret))
	assert.Equal(t, string(domain.PaymentEventProcessed), gotEventType)

	var delivered domain.PaymentEvent
	require.NoError(t, json.Unmarshal(gotBody, &delivered))
	assert.Equal(t, "agr-1", delivered.AgreementID)
	assert.Equal(t, "rec-1", delivered.RecordID)
	assert.True(t, decimal.NewFromInt(100).Equal(delivered.Amount))
}

func TestEmitter_FullBufferDropsWithoutBlocking(t *testing.T) {
	// No worker started, so the buffer fills up and further emits drop
	emitter := NewEmitter(config.NotificationConfig{
		ListenerURL: "http://unused",
		BufferSize:  1,
	}, testSigningSecret, zap.NewNop())

	done := make(chan struct{})
	go func() {
		emitter.Emit(testEvent())
		emitter.Emit(testEvent())
		emitter.Emit(testEvent())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}

func TestEmitter_NoListenerConfigured(t *testing.T) {
	emitter := NewEmitter(config.NotificationConfig{BufferSize: 4}, testSigningSecret, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter.Start(ctx)

	// Delivery is a no-op but consumption keeps the buffer from filling
	for i := 0; i < 10; i++ {
		emitter.Emit(testEvent())
	}
}

func TestEmitter_EmitAfterCloseDrops(t *testing.T) {
	emitter := NewEmitter(config.NotificationConfig{
		ListenerURL: "http://unused",
		BufferSize:  4,
	}, testSigningSecret, zap.NewNop())

	emitter.Close()

	// A late emit racing shutdown must drop, never panic
	emitter.Emit(testEvent())
	emitter.Emit(testEvent())
}

func TestEmitter_CloseDrainsQueuedEvents(t *testing.T) {
	var delivered sync.WaitGroup
	delivered.Add(2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		delivered.Done()
	}))
	defer server.Close()

	emitter := NewEmitter(config.NotificationConfig{
		ListenerURL:     server.URL,
		BufferSize:      8,
		DeliveryTimeout: time.Second,
	}, testSigningSecret, zap.NewNop())

	// Queue before starting the worker so both events are buffered at close time
	emitter.Emit(testEvent())
	emitter.Emit(testEvent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter.Start(ctx)
	emitter.Close()

	drained := make(chan struct{})
	go func() {
		delivered.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("queued events were not delivered before shutdown")
	}
}

func TestVerifySignature_Mismatch(t *testing.T) {
	payload := []byte(`{"x":1}`)
	emitter := NewEmitter(config.NotificationConfig{}, testSigningSecret, zap.NewNop())

	require.NoError(t, VerifySignature(payload, emitter.sign(payload), testSigningSecret))
	require.Error(t, VerifySignature(payload, emitter.sign(payload), "other_secret"))
}
