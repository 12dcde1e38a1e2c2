package rates

import (
	"errors"
	"sync"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// Provider yields the exchange rate in effect right now. Orders record the
// returned value so later fluctuations never change a historical amount.
type Provider interface {
	Rate(currency string) (float64, error)
}

// StaticProvider serves rates from a fixed table, with the base currency at
// 1.0. Rates can be swapped at runtime by an admin process.
type StaticProvider struct {
	mu    sync.RWMutex
	base  string
	table map[string]float64
}

func NewStaticProvider(base string, table map[string]float64) *StaticProvider {
	copied := make(map[string]float64, len(table))
	for currency, rate := range table {
		copied[currency] = rate
	}
	return &StaticProvider{base: base, table: copied}
}

func (p *StaticProvider) Rate(currency string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if currency == p.base {
		return 1.0, nil
	}
	rate, ok := p.table[currency]
	if !ok {
		return 0, ErrUnknownCurrency
	}
	return rate, nil
}

func (p *StaticProvider) SetRate(currency string, rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table[currency] = rate
}
