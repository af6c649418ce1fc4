package source

import (
	"context"
	"errors"
	"time"

	"github.com/rawblock/onchain-intel/internal/apperrors"
	"github.com/rawblock/onchain-intel/pkg/models"
	"github.com/rs/zerolog"
)

// Provider implements C3: it dispatches each capability call to the
// highest-priority available adapter, falling back through the remaining
// adapters in order on failure, and feeding every attempt's outcome to
// the health tracker.
type Provider struct {
	adapters []Adapter
	health   *HealthTracker
	log      zerolog.Logger
}

// NewProvider builds a provider over adapters in priority order (index 0
// tried first).
func NewProvider(adapters []Adapter, health *HealthTracker, log zerolog.Logger) *Provider {
	return &Provider{adapters: adapters, health: health, log: log.With().Str("component", "source_provider").Logger()}
}

// ForcePriority moves the named adapter to the front of the priority
// list, for tests that need a deterministic primary source.
func (p *Provider) ForcePriority(name string) {
	for i, a := range p.adapters {
		if a.Name() == name {
			reordered := make([]Adapter, 0, len(p.adapters))
			reordered = append(reordered, a)
			reordered = append(reordered, p.adapters[:i]...)
			reordered = append(reordered, p.adapters[i+1:]...)
			p.adapters = reordered
			return
		}
	}
}

// PrimarySource returns the name of the currently highest-priority
// available adapter, or "" if none are available.
func (p *Provider) PrimarySource() string {
	for _, a := range p.adapters {
		if p.health.IsAvailable(a.Name()) {
			return a.Name()
		}
	}
	return ""
}

// AvailableSources lists adapters currently not in cooldown.
func (p *Provider) AvailableSources() []string {
	var out []string
	for _, a := range p.adapters {
		if p.health.IsAvailable(a.Name()) {
			out = append(out, a.Name())
		}
	}
	return out
}

func (p *Provider) tryAdapter(ctx context.Context, a Adapter, op string, call func(Adapter) error) error {
	start := time.Now()
	err := call(a)
	elapsed := time.Since(start)

	var capErr *apperrors.AdapterCapabilityError
	if errors.As(err, &capErr) {
		return err
	}

	if err != nil {
		p.health.RecordFailure(a.Name())
		p.log.Warn().Err(err).Str("source", a.Name()).Str("op", op).Dur("elapsed", elapsed).Msg("adapter call failed")
		return err
	}

	p.health.RecordSuccess(a.Name(), elapsed)
	return nil
}

// callWithFallback tries each available adapter in priority order until
// one succeeds, or returns AllSourcesFailed.
func (p *Provider) callWithFallback(ctx context.Context, op string, call func(Adapter) error) error {
	var attempted []string
	var errs []error

	for _, a := range p.adapters {
		if !p.health.IsAvailable(a.Name()) {
			continue
		}
		attempted = append(attempted, a.Name())

		var capErr *apperrors.AdapterCapabilityError
		err := p.tryAdapter(ctx, a, op, call)
		if err == nil {
			return nil
		}
		if errors.As(err, &capErr) {
			continue
		}
		errs = append(errs, err)
	}

	return &apperrors.AllSourcesFailed{Op: op, Attempted: attempted, Errs: errs}
}

func (p *Provider) GetBlockHeight(ctx context.Context) (int64, error) {
	var result int64
	err := p.callWithFallback(ctx, "GetBlockHeight", func(a Adapter) error {
		v, err := a.GetBlockHeight(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Provider) GetBlock(ctx context.Context, height int64) (models.RawBlock, error) {
	var result models.RawBlock
	err := p.callWithFallback(ctx, "GetBlock", func(a Adapter) error {
		v, err := a.GetBlock(ctx, height)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Provider) GetBlockTransactions(ctx context.Context, height int64) ([]models.RawTx, error) {
	var result []models.RawTx
	err := p.callWithFallback(ctx, "GetBlockTransactions", func(a Adapter) error {
		v, err := a.GetBlockTransactions(ctx, height)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Provider) GetTransaction(ctx context.Context, txid string) (models.RawTx, error) {
	var result models.RawTx
	err := p.callWithFallback(ctx, "GetTransaction", func(a Adapter) error {
		v, err := a.GetTransaction(ctx, txid)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Provider) GetMempoolInfo(ctx context.Context) (models.MempoolSnapshot, error) {
	var result models.MempoolSnapshot
	err := p.callWithFallback(ctx, "GetMempoolInfo", func(a Adapter) error {
		v, err := a.GetMempoolInfo(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Provider) GetRecommendedFees(ctx context.Context) (models.RecommendedFees, error) {
	var result models.RecommendedFees
	err := p.callWithFallback(ctx, "GetRecommendedFees", func(a Adapter) error {
		v, err := a.GetRecommendedFees(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (p *Provider) GetAddress(ctx context.Context, address string) (AddressInfo, error) {
	var result AddressInfo
	err := p.callWithFallback(ctx, "GetAddress", func(a Adapter) error {
		v, err := a.GetAddress(ctx, address)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
