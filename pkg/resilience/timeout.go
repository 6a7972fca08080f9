package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (60s)
//	  Service Layer (50s)
//	    External API (30s - payment gateways, rate source)
//	      Database Query (2s/5s/30s - based on complexity)
//
// Each layer completes before its parent times out, so a slow gateway call
// surfaces as a gateway timeout rather than a dropped connection.
type TimeoutConfig struct {
	// Handler layer timeouts
	HTTPHandler time.Duration // Overall request timeout (default: 60s)
	AdminSweep  time.Duration // Reconciliation sweep timeout (default: 5 minutes)

	// Service layer timeouts
	Service            time.Duration // Service operation timeout (default: 50s)
	ServiceCritical    time.Duration // Settlement transitions (default: 45s)
	ServiceNonCritical time.Duration // Notification delivery and other side work (default: 30s)

	// External API timeouts (adapters)
	ExternalAPI     time.Duration // Payment gateway and rate source calls (default: 30s)
	SingleRetry     time.Duration // Individual retry attempt (default: 10s)
	WebhookDelivery time.Duration // Notification delivery per attempt (default: 10s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		AdminSweep:  5 * time.Minute,

		Service:            50 * time.Second,
		ServiceCritical:    45 * time.Second,
		ServiceNonCritical: 30 * time.Second,

		ExternalAPI:     30 * time.Second,
		SingleRetry:     10 * time.Second,
		WebhookDelivery: 10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:        5 * time.Second,
		AdminSweep:         30 * time.Second,
		Service:            4 * time.Second,
		ServiceCritical:    3 * time.Second,
		ServiceNonCritical: 2 * time.Second,
		ExternalAPI:        2 * time.Second,
		SingleRetry:        1 * time.Second,
		WebhookDelivery:    1 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// SweepContext creates a context with timeout for reconciliation sweeps
func (tc *TimeoutConfig) SweepContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.AdminSweep)
}

// ServiceContext creates a context with timeout for service layer operations
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// CriticalPathContext creates a context for settlement transitions
func (tc *TimeoutConfig) CriticalPathContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ServiceCritical)
}

// NonCriticalContext creates a context for non-critical operations
func (tc *TimeoutConfig) NonCriticalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ServiceNonCritical)
}

// ExternalAPIContext creates a context for external API calls
func (tc *TimeoutConfig) ExternalAPIContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ExternalAPI)
}

// RetryAttemptContext creates a context for a single retry attempt
func (tc *TimeoutConfig) RetryAttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.SingleRetry)
}

// WebhookContext creates a context for notification delivery
func (tc *TimeoutConfig) WebhookContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.WebhookDelivery)
}
