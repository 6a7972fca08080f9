package adapters

import (
	"github.com/scribeline/payment-engine/internal/domain"
	"github.com/scribeline/payment-engine/internal/domain/ports"
)

// Registry holds the configured payment gateways keyed by name
type Registry struct {
	gateways map[domain.Gateway]ports.PaymentGateway
}

// NewRegistry builds a registry from the given gateways
func NewRegistry(gateways ...ports.PaymentGateway) *Registry {
	m := make(map[domain.Gateway]ports.PaymentGateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{gateways: m}
}

// Gateway returns the gateway registered under the given name
func (r *Registry) Gateway(name domain.Gateway) (ports.PaymentGateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayUnsupported,
			"no gateway registered for "+string(name))
	}
	return g, nil
}
