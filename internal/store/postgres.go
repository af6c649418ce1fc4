// Package store implements C6: transactional persistence of metrics,
// signals, whale transactions, and audit records over Postgres via pgx,
// using ON CONFLICT upserts and no caller-controlled identifiers in any
// query.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/onchain-intel/internal/apperrors"
	"github.com/rawblock/onchain-intel/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a pgxpool.Pool with the domain-specific queries C6 needs.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr with the given min/max size.
func Connect(ctx context.Context, connStr string, minConns, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "ParseConfig", Err: err}
	}
	cfg.MinConns = minConns
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "Connect", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &apperrors.PersistenceError{Op: "Ping", Err: err}
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying pool for callers that need it directly
// (e.g. /health checks).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// InitSchema applies the embedded schema DDL. Idempotent (every statement
// is IF NOT EXISTS).
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return &apperrors.PersistenceError{Op: "InitSchema", Err: err}
	}
	return nil
}

// SaveMetrics upserts one MetricsSnapshot.
func (s *Store) SaveMetrics(ctx context.Context, m models.MetricsSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metrics (
			asset, timeframe, timestamp, block_height, blocks_analyzed,
			total_transactions, avg_block_size, avg_txs_per_block, pending_txs,
			mempool_size_mb, total_fees_btc, fastest_fee, hour_fee,
			whale_tx_count, whale_volume_btc, whale_inflow_btc, whale_outflow_btc,
			net_whale_flow_btc, whale_dominance, data_completeness, stability_score,
			anomaly_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (timestamp, asset, timeframe) DO UPDATE SET
			block_height = EXCLUDED.block_height,
			blocks_analyzed = EXCLUDED.blocks_analyzed,
			total_transactions = EXCLUDED.total_transactions,
			avg_block_size = EXCLUDED.avg_block_size,
			avg_txs_per_block = EXCLUDED.avg_txs_per_block,
			pending_txs = EXCLUDED.pending_txs,
			mempool_size_mb = EXCLUDED.mempool_size_mb,
			total_fees_btc = EXCLUDED.total_fees_btc,
			fastest_fee = EXCLUDED.fastest_fee,
			hour_fee = EXCLUDED.hour_fee,
			whale_tx_count = EXCLUDED.whale_tx_count,
			whale_volume_btc = EXCLUDED.whale_volume_btc,
			whale_inflow_btc = EXCLUDED.whale_inflow_btc,
			whale_outflow_btc = EXCLUDED.whale_outflow_btc,
			net_whale_flow_btc = EXCLUDED.net_whale_flow_btc,
			whale_dominance = EXCLUDED.whale_dominance,
			data_completeness = EXCLUDED.data_completeness,
			stability_score = EXCLUDED.stability_score,
			anomaly_count = EXCLUDED.anomaly_count
	`,
		m.Asset, m.Timeframe, m.Timestamp, m.BlockHeight, m.BlocksAnalyzed,
		m.TotalTransactions, m.AvgBlockSize, m.AvgTxsPerBlock, m.PendingTxs,
		m.MempoolSizeMB, m.TotalFeesBTC, m.FastestFee, m.HourFee,
		m.Whale.Count, m.Whale.TotalVolume, m.Whale.InflowBTC, m.Whale.OutflowBTC,
		m.Whale.NetFlowBTC, m.Whale.Dominance, m.DataCompleteness, m.StabilityScore,
		m.AnomalyCount,
	)
	if err != nil {
		return &apperrors.PersistenceError{Op: "SaveMetrics", Err: err}
	}
	return nil
}

// SaveSignal upserts one DerivedSignal alongside the state it resolved to
// and a data hash for quick integrity spot-checks.
func (s *Store) SaveSignal(ctx context.Context, sig models.DerivedSignal, state models.State, dataHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signals (
			asset, timeframe, timestamp, smart_money_accumulation,
			whale_flow_dominant, network_growth, distribution_risk,
			onchain_score, bias, confidence, conflicting_signals, state, data_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (timestamp, asset, timeframe) DO UPDATE SET
			smart_money_accumulation = EXCLUDED.smart_money_accumulation,
			whale_flow_dominant = EXCLUDED.whale_flow_dominant,
			network_growth = EXCLUDED.network_growth,
			distribution_risk = EXCLUDED.distribution_risk,
			onchain_score = EXCLUDED.onchain_score,
			bias = EXCLUDED.bias,
			confidence = EXCLUDED.confidence,
			conflicting_signals = EXCLUDED.conflicting_signals,
			state = EXCLUDED.state,
			data_hash = EXCLUDED.data_hash
	`,
		sig.Asset, sig.Timeframe, sig.Timestamp, sig.SmartMoneyAccumulation,
		sig.WhaleFlowDominant, sig.NetworkGrowth, sig.DistributionRisk,
		sig.Score, string(sig.Bias), sig.Confidence, sig.ConflictingSignals,
		string(state), dataHash,
	)
	if err != nil {
		return &apperrors.PersistenceError{Op: "SaveSignal", Err: err}
	}
	return nil
}

// SaveWhaleTxs batch-inserts newly observed whale transactions,
// skipping any txid already seen.
func (s *Store) SaveWhaleTxs(ctx context.Context, asset string, txs []models.WhaleTx) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &apperrors.PersistenceError{Op: "SaveWhaleTxs:Begin", Err: err}
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, w := range txs {
		batch.Queue(`
			INSERT INTO whale_txs (
				txid, asset, block_height, timestamp, value_btc, tier,
				flow_type, fee_btc, input_count, output_count
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (txid) DO NOTHING
		`, w.TxID, asset, w.BlockHeight, w.Timestamp, w.ValueBTC, string(w.Tier),
			string(w.Flow), w.FeeBTC, w.InputCount, w.OutputCount)
	}

	br := tx.SendBatch(ctx, batch)
	for range txs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return &apperrors.PersistenceError{Op: "SaveWhaleTxs:Exec", Err: err}
		}
	}
	if err := br.Close(); err != nil {
		return &apperrors.PersistenceError{Op: "SaveWhaleTxs:CloseBatch", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &apperrors.PersistenceError{Op: "SaveWhaleTxs:Commit", Err: err}
	}
	return nil
}

// LatestSignalAndState returns the most recent signal+state row for
// (asset, timeframe), or pgx.ErrNoRows if none exists.
func (s *Store) LatestSignalAndState(ctx context.Context, asset, timeframe string) (models.DerivedSignal, models.State, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT timestamp, smart_money_accumulation, whale_flow_dominant,
		       network_growth, distribution_risk, onchain_score, bias,
		       confidence, conflicting_signals, state
		FROM signals
		WHERE asset = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`, asset, timeframe)

	var sig models.DerivedSignal
	var bias, state string
	sig.Asset, sig.Timeframe = asset, timeframe
	err := row.Scan(&sig.Timestamp, &sig.SmartMoneyAccumulation, &sig.WhaleFlowDominant,
		&sig.NetworkGrowth, &sig.DistributionRisk, &sig.Score, &bias,
		&sig.Confidence, &sig.ConflictingSignals, &state)
	if err != nil {
		return models.DerivedSignal{}, "", &apperrors.PersistenceError{Op: "LatestSignalAndState", Err: err}
	}
	sig.Bias = models.Bias(bias)
	return sig, models.State(state), nil
}

// LatestMetrics returns the most recent MetricsSnapshot for (asset,
// timeframe).
func (s *Store) LatestMetrics(ctx context.Context, asset, timeframe string) (models.MetricsSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT timestamp, block_height, blocks_analyzed, total_transactions,
		       avg_block_size, avg_txs_per_block, pending_txs, mempool_size_mb,
		       total_fees_btc, fastest_fee, hour_fee, whale_tx_count,
		       whale_volume_btc, whale_inflow_btc, whale_outflow_btc,
		       net_whale_flow_btc, whale_dominance, data_completeness,
		       stability_score, anomaly_count
		FROM metrics
		WHERE asset = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`, asset, timeframe)

	var m models.MetricsSnapshot
	m.Asset, m.Timeframe = asset, timeframe
	err := row.Scan(&m.Timestamp, &m.BlockHeight, &m.BlocksAnalyzed, &m.TotalTransactions,
		&m.AvgBlockSize, &m.AvgTxsPerBlock, &m.PendingTxs, &m.MempoolSizeMB,
		&m.TotalFeesBTC, &m.FastestFee, &m.HourFee, &m.Whale.Count,
		&m.Whale.TotalVolume, &m.Whale.InflowBTC, &m.Whale.OutflowBTC,
		&m.Whale.NetFlowBTC, &m.Whale.Dominance, &m.DataCompleteness,
		&m.StabilityScore, &m.AnomalyCount)
	if err != nil {
		return models.MetricsSnapshot{}, &apperrors.PersistenceError{Op: "LatestMetrics", Err: err}
	}
	return m, nil
}

// SaveAuditRecord persists an audit record, ignoring duplicate
// calculation hashes (the calculation is by definition identical).
func (s *Store) SaveAuditRecord(ctx context.Context, rec models.AuditRecord) error {
	outputJSON, err := json.Marshal(rec.OutputSnapshot)
	if err != nil {
		return &apperrors.PersistenceError{Op: "SaveAuditRecord:marshal", Err: err}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_calculations (
			calculation_hash, asset, timeframe, timestamp,
			input_data_hash, config_hash, output_data
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (calculation_hash) DO NOTHING
	`, rec.CalculationHash, rec.Asset, rec.Timeframe, rec.Timestamp,
		rec.InputHash, rec.ConfigHash, outputJSON)
	if err != nil {
		return &apperrors.PersistenceError{Op: "SaveAuditRecord", Err: err}
	}
	return nil
}

// AuditRecordAt returns the stored audit record for (asset, timeframe,
// timestamp), or pgx.ErrNoRows if none exists.
func (s *Store) AuditRecordAt(ctx context.Context, asset, timeframe string, timestamp time.Time) (models.AuditRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT calculation_hash, input_data_hash, config_hash, output_data, created_at
		FROM audit_calculations
		WHERE asset = $1 AND timeframe = $2 AND timestamp = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, asset, timeframe, timestamp)

	var rec models.AuditRecord
	rec.Asset, rec.Timeframe, rec.Timestamp = asset, timeframe, timestamp
	var outputJSON []byte
	if err := row.Scan(&rec.CalculationHash, &rec.InputHash, &rec.ConfigHash, &outputJSON, &rec.CreatedAt); err != nil {
		return models.AuditRecord{}, &apperrors.PersistenceError{Op: "AuditRecordAt", Err: err}
	}
	if err := json.Unmarshal(outputJSON, &rec.OutputSnapshot); err != nil {
		return models.AuditRecord{}, &apperrors.PersistenceError{Op: "AuditRecordAt:unmarshal", Err: err}
	}
	return rec, nil
}

// WhaleActivitySummary reports whale tx count and total volume since
// since, for quick dashboard-style queries.
func (s *Store) WhaleActivitySummary(ctx context.Context, asset string, since time.Time) (count int, totalVolume float64, err error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(value_btc), 0)
		FROM whale_txs
		WHERE asset = $1 AND timestamp >= $2
	`, asset, since)
	if err := row.Scan(&count, &totalVolume); err != nil {
		return 0, 0, &apperrors.PersistenceError{Op: "WhaleActivitySummary", Err: err}
	}
	return count, totalVolume, nil
}
