// Package source implements the ingest layer: per-provider REST adapters
// (C1), rolling health tracking (C2), and priority-ordered failover
// across adapters (C3).
package source

import (
	"context"

	"github.com/rawblock/onchain-intel/pkg/models"
)

// Adapter is implemented by each concrete data source. Every method
// returns an *apperrors.AdapterError on transport/protocol failure, or an
// *apperrors.AdapterCapabilityError if the source has no such endpoint.
type Adapter interface {
	Name() string
	GetBlockHeight(ctx context.Context) (int64, error)
	GetBlock(ctx context.Context, height int64) (models.RawBlock, error)
	GetBlockTransactions(ctx context.Context, height int64) ([]models.RawTx, error)
	GetTransaction(ctx context.Context, txid string) (models.RawTx, error)
	GetMempoolInfo(ctx context.Context) (models.MempoolSnapshot, error)
	GetRecommendedFees(ctx context.Context) (models.RecommendedFees, error)
	GetAddress(ctx context.Context, address string) (AddressInfo, error)
}

// AddressInfo is a minimal normalized view of an address's chain activity,
// used by the whale detector's exchange-tag heuristics.
type AddressInfo struct {
	Address          string
	TotalReceivedBTC float64
	TotalSentBTC     float64
	TxCount          int64
}
