// Package mempoolspace adapts the mempool.space public REST API to the
// source.Adapter interface. It is the default primary source.
package mempoolspace

import (
	"context"
	"fmt"
	"time"

	"github.com/rawblock/onchain-intel/internal/apperrors"
	"github.com/rawblock/onchain-intel/internal/source"
	"github.com/rawblock/onchain-intel/internal/source/restutil"
	"github.com/rawblock/onchain-intel/pkg/models"
)

const Name = "mempool_space"

type Adapter struct {
	client *restutil.Client
}

func New(baseURL string, timeout time.Duration, ratePerSec float64) *Adapter {
	return &Adapter{client: restutil.NewClient(baseURL, timeout, ratePerSec)}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) GetBlockHeight(ctx context.Context) (int64, error) {
	body, err := a.client.Get(ctx, "/blocks/tip/height", nil)
	if err != nil {
		return 0, &apperrors.AdapterError{Source: Name, Op: "GetBlockHeight", Err: err}
	}
	var height int64
	if _, err := fmt.Sscanf(string(body), "%d", &height); err != nil {
		return 0, &apperrors.AdapterError{Source: Name, Op: "GetBlockHeight", Err: err}
	}
	return height, nil
}

type blockResp struct {
	ID        string `json:"id"`
	Height    int64  `json:"height"`
	Timestamp int64  `json:"timestamp"`
	TxCount   int    `json:"tx_count"`
	Size      int64  `json:"size"`
}

func (a *Adapter) GetBlock(ctx context.Context, height int64) (models.RawBlock, error) {
	var hashBody []byte
	hashBody, err := a.client.Get(ctx, fmt.Sprintf("/block-height/%d", height), nil)
	if err != nil {
		return models.RawBlock{}, &apperrors.AdapterError{Source: Name, Op: "GetBlock", Err: err}
	}
	hash := string(hashBody)

	var b blockResp
	if err := a.client.GetJSON(ctx, "/block/"+hash, nil, &b); err != nil {
		return models.RawBlock{}, &apperrors.AdapterError{Source: Name, Op: "GetBlock", Err: err}
	}

	return models.RawBlock{
		Height:    b.Height,
		Hash:      b.ID,
		Timestamp: restutil.UnixSecToTime(b.Timestamp),
		TxCount:   b.TxCount,
		SizeBytes: b.Size,
	}, nil
}

type txResp struct {
	TxID   string `json:"txid"`
	Fee    int64  `json:"fee"`
	Size   int    `json:"size"`
	Status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight int64  `json:"block_height"`
		BlockTime   int64  `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		TxID    string `json:"txid"`
		Vout    int    `json:"vout"`
		Prevout *struct {
			Value            int64  `json:"value"`
			ScriptPubkeyAddr string `json:"scriptpubkey_address"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		Value            int64  `json:"value"`
		ScriptPubkeyAddr string `json:"scriptpubkey_address"`
	} `json:"vout"`
}

func convertTx(t txResp) models.RawTx {
	rt := models.RawTx{
		TxID:      t.TxID,
		Timestamp: time.Now().UTC(),
		SizeBytes: t.Size,
	}
	if t.Status.Confirmed {
		h := t.Status.BlockHeight
		rt.BlockHeight = &h
		rt.Timestamp = restutil.UnixSecToTime(t.Status.BlockTime)
	}
	if t.Fee > 0 {
		fee := restutil.SatsToBTC(t.Fee)
		rt.FeeBTC = &fee
	}
	for _, in := range t.Vin {
		rtIn := models.RawTxInput{TxID: in.TxID, Vout: in.Vout}
		if in.Prevout != nil {
			v := restutil.SatsToBTC(in.Prevout.Value)
			rtIn.Value = &v
			if in.Prevout.ScriptPubkeyAddr != "" {
				addr := in.Prevout.ScriptPubkeyAddr
				rtIn.Address = &addr
			}
		}
		rt.Inputs = append(rt.Inputs, rtIn)
	}
	for _, out := range t.Vout {
		rtOut := models.RawTxOutput{Value: restutil.SatsToBTC(out.Value)}
		if out.ScriptPubkeyAddr != "" {
			addr := out.ScriptPubkeyAddr
			rtOut.Address = &addr
		}
		rt.Outputs = append(rt.Outputs, rtOut)
	}
	return rt
}

func (a *Adapter) GetBlockTransactions(ctx context.Context, height int64) ([]models.RawTx, error) {
	hashBody, err := a.client.Get(ctx, fmt.Sprintf("/block-height/%d", height), nil)
	if err != nil {
		return nil, &apperrors.AdapterError{Source: Name, Op: "GetBlockTransactions", Err: err}
	}
	hash := string(hashBody)

	var txs []txResp
	if err := a.client.GetJSON(ctx, "/block/"+hash+"/txs", nil, &txs); err != nil {
		return nil, &apperrors.AdapterError{Source: Name, Op: "GetBlockTransactions", Err: err}
	}

	out := make([]models.RawTx, 0, len(txs))
	for _, t := range txs {
		out = append(out, convertTx(t))
	}
	return out, nil
}

func (a *Adapter) GetTransaction(ctx context.Context, txid string) (models.RawTx, error) {
	var t txResp
	if err := a.client.GetJSON(ctx, "/tx/"+txid, nil, &t); err != nil {
		return models.RawTx{}, &apperrors.AdapterError{Source: Name, Op: "GetTransaction", Err: err}
	}
	return convertTx(t), nil
}

type mempoolResp struct {
	Count      int64   `json:"count"`
	VSize      int64   `json:"vsize"`
	TotalFee   int64   `json:"total_fee"`
}

func (a *Adapter) GetMempoolInfo(ctx context.Context) (models.MempoolSnapshot, error) {
	var m mempoolResp
	if err := a.client.GetJSON(ctx, "/mempool", nil, &m); err != nil {
		return models.MempoolSnapshot{}, &apperrors.AdapterError{Source: Name, Op: "GetMempoolInfo", Err: err}
	}

	fees, err := a.GetRecommendedFees(ctx)
	if err != nil {
		return models.MempoolSnapshot{}, err
	}

	return models.MempoolSnapshot{
		Timestamp:  time.Now().UTC(),
		PendingTxs: m.Count,
		SizeMB:     float64(m.VSize) / 1e6,
		Fees:       fees,
	}, nil
}

type feesResp struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

func (a *Adapter) GetRecommendedFees(ctx context.Context) (models.RecommendedFees, error) {
	var f feesResp
	if err := a.client.GetJSON(ctx, "/v1/fees/recommended", nil, &f); err != nil {
		return models.RecommendedFees{}, &apperrors.AdapterError{Source: Name, Op: "GetRecommendedFees", Err: err}
	}
	return models.RecommendedFees{
		FastestFee:  f.FastestFee,
		HalfHourFee: f.HalfHourFee,
		HourFee:     f.HourFee,
		EconomyFee:  f.EconomyFee,
		MinimumFee:  f.MinimumFee,
	}, nil
}

type addressResp struct {
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
		TxCount      int64 `json:"tx_count"`
	} `json:"chain_stats"`
}

func (a *Adapter) GetAddress(ctx context.Context, address string) (source.AddressInfo, error) {
	var r addressResp
	if err := a.client.GetJSON(ctx, "/address/"+address, nil, &r); err != nil {
		return source.AddressInfo{}, &apperrors.AdapterError{Source: Name, Op: "GetAddress", Err: err}
	}
	return source.AddressInfo{
		Address:          address,
		TotalReceivedBTC: restutil.SatsToBTC(r.ChainStats.FundedTxoSum),
		TotalSentBTC:     restutil.SatsToBTC(r.ChainStats.SpentTxoSum),
		TxCount:          r.ChainStats.TxCount,
	}, nil
}

var _ source.Adapter = (*Adapter)(nil)
