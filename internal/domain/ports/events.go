package ports

import "github.com/scribeline/payment-engine/internal/domain"

// EventEmitter publishes domain events to downstream collaborators.
// Emit is fire-and-forget: it must never block the caller and delivery
// failures never surface as errors on the settlement path.
type EventEmitter interface {
	Emit(event domain.PaymentEvent)
}
