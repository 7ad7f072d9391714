package scrapers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/raushankrgupta/product-sourcing/scrapers/aliexpress"
	"github.com/raushankrgupta/product-sourcing/scrapers/amazon"
	"github.com/raushankrgupta/product-sourcing/scrapers/flipkart"
	"github.com/raushankrgupta/product-sourcing/scrapers/generic"
	"github.com/raushankrgupta/product-sourcing/scrapers/myntra"
	"github.com/raushankrgupta/product-sourcing/scrapers/peterengland"
	"github.com/raushankrgupta/product-sourcing/scrapers/tatacliq"
)

// ErrNoAdapter is returned when no registered adapter accepts a URL.
var ErrNoAdapter = errors.New("no adapter found for url")

// Registry resolves URLs to adapters. Site-specific adapters are tried in
// registration order; the fallback is consulted only after all of them.
type Registry struct {
	mu       sync.RWMutex
	sites    []Registration
	fallback *Registration
}

// NewRegistry creates an empty registry with no fallback.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a site-specific adapter.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites = append(r.sites, reg)
}

// SetFallback installs the adapter used when no site matches.
func (r *Registry) SetFallback(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = &reg
}

// Resolve returns the registration that handles url.
func (r *Registry) Resolve(url string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, reg := range r.sites {
		if reg.Adapter.CanHandle(url) {
			return reg, nil
		}
	}
	if r.fallback != nil && r.fallback.Adapter.CanHandle(url) {
		return *r.fallback, nil
	}
	return Registration{}, fmt.Errorf("%w: %s", ErrNoAdapter, url)
}

// Names lists the registered adapters in resolution order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sites)+1)
	for _, reg := range r.sites {
		names = append(names, reg.Name())
	}
	if r.fallback != nil {
		names = append(names, r.fallback.Name())
	}
	return names
}

// DefaultRegistry returns the built-in site adapters with the generic
// adapter as fallback.
func DefaultRegistry() *Registry {
	ali := aliexpress.NewAliExpressScraper()
	amz := amazon.NewAmazonScraper()
	fk := flipkart.NewFlipkartScraper()
	my := myntra.NewMyntraScraper()
	tc := tatacliq.NewTataCliqScraper()
	pe := peterengland.NewPeterEnglandScraper()

	r := NewRegistry()
	r.Register(Registration{Adapter: ali, Reviews: ali, Ready: ali.Ready})
	r.Register(Registration{Adapter: amz, Reviews: amz, Ready: amz.Ready})
	r.Register(Registration{Adapter: fk, Ready: fk.Ready})
	r.Register(Registration{Adapter: my, Ready: my.Ready})
	r.Register(Registration{Adapter: tc, Ready: tc.Ready})
	r.Register(Registration{Adapter: pe, Ready: pe.Ready})
	r.SetFallback(Registration{Adapter: generic.NewGenericScraper()})
	return r
}
