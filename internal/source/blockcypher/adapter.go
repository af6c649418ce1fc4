// Package blockcypher adapts the BlockCypher REST API, the second
// fallback source in the priority list.
package blockcypher

import (
	"context"
	"fmt"
	"time"

	"github.com/rawblock/onchain-intel/internal/apperrors"
	"github.com/rawblock/onchain-intel/internal/source"
	"github.com/rawblock/onchain-intel/internal/source/restutil"
	"github.com/rawblock/onchain-intel/pkg/models"
)

const Name = "blockcypher"

type Adapter struct {
	client *restutil.Client
	token  string
}

func New(baseURL string, token string, timeout time.Duration, ratePerSec float64) *Adapter {
	return &Adapter{client: restutil.NewClient(baseURL, timeout, ratePerSec), token: token}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) withToken(path string) string {
	if a.token == "" {
		return path
	}
	sep := "?"
	if contains(path, "?") {
		sep = "&"
	}
	return path + sep + "token=" + a.token
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

type chainInfoResp struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}

func (a *Adapter) GetBlockHeight(ctx context.Context) (int64, error) {
	var c chainInfoResp
	if err := a.client.GetJSON(ctx, a.withToken(""), nil, &c); err != nil {
		return 0, &apperrors.AdapterError{Source: Name, Op: "GetBlockHeight", Err: err}
	}
	return c.Height, nil
}

type txRef struct {
	TxHash string `json:"tx_hash"`
}

type blockResp struct {
	Hash      string  `json:"hash"`
	Height    int64   `json:"height"`
	Time      string  `json:"time"`
	NTx       int     `json:"n_tx"`
	Size      int64   `json:"size"`
	TXids     []string `json:"txids"`
}

func (a *Adapter) GetBlock(ctx context.Context, height int64) (models.RawBlock, error) {
	var b blockResp
	if err := a.client.GetJSON(ctx, a.withToken(fmt.Sprintf("/blocks/%d", height)), nil, &b); err != nil {
		return models.RawBlock{}, &apperrors.AdapterError{Source: Name, Op: "GetBlock", Err: err}
	}
	ts, err := time.Parse(time.RFC3339, b.Time)
	if err != nil {
		ts = time.Now().UTC()
	}
	return models.RawBlock{
		Height:    b.Height,
		Hash:      b.Hash,
		Timestamp: ts,
		TxCount:   b.NTx,
		SizeBytes: b.Size,
	}, nil
}

// GetBlockTransactions: BlockCypher's free tier returns only txids per
// block, not full transaction bodies, so this fans out one GetTransaction
// call per txid. Capped via the caller's context deadline.
func (a *Adapter) GetBlockTransactions(ctx context.Context, height int64) ([]models.RawTx, error) {
	var b blockResp
	if err := a.client.GetJSON(ctx, a.withToken(fmt.Sprintf("/blocks/%d", height)), nil, &b); err != nil {
		return nil, &apperrors.AdapterError{Source: Name, Op: "GetBlockTransactions", Err: err}
	}

	out := make([]models.RawTx, 0, len(b.TXids))
	for _, txid := range b.TXids {
		tx, err := a.GetTransaction(ctx, txid)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

type txResp struct {
	Hash        string `json:"hash"`
	Fees        int64  `json:"fees"`
	Size        int    `json:"size"`
	Confirmed   string `json:"confirmed"`
	BlockHeight int64  `json:"block_height"`
	Inputs      []struct {
		OutputValue int64    `json:"output_value"`
		Addresses   []string `json:"addresses"`
	} `json:"inputs"`
	Outputs []struct {
		Value     int64    `json:"value"`
		Addresses []string `json:"addresses"`
	} `json:"outputs"`
}

func convertTx(t txResp) models.RawTx {
	rt := models.RawTx{
		TxID:      t.Hash,
		Timestamp: time.Now().UTC(),
		SizeBytes: t.Size,
	}
	if t.BlockHeight > 0 {
		h := t.BlockHeight
		rt.BlockHeight = &h
	}
	if ts, err := time.Parse(time.RFC3339, t.Confirmed); err == nil {
		rt.Timestamp = ts
	}
	if t.Fees > 0 {
		fee := restutil.SatsToBTC(t.Fees)
		rt.FeeBTC = &fee
	}
	for _, in := range t.Inputs {
		rtIn := models.RawTxInput{}
		v := restutil.SatsToBTC(in.OutputValue)
		rtIn.Value = &v
		if len(in.Addresses) > 0 {
			addr := in.Addresses[0]
			rtIn.Address = &addr
		}
		rt.Inputs = append(rt.Inputs, rtIn)
	}
	for _, out := range t.Outputs {
		rtOut := models.RawTxOutput{Value: restutil.SatsToBTC(out.Value)}
		if len(out.Addresses) > 0 {
			addr := out.Addresses[0]
			rtOut.Address = &addr
		}
		rt.Outputs = append(rt.Outputs, rtOut)
	}
	return rt
}

func (a *Adapter) GetTransaction(ctx context.Context, txid string) (models.RawTx, error) {
	var t txResp
	if err := a.client.GetJSON(ctx, a.withToken("/txs/"+txid), nil, &t); err != nil {
		return models.RawTx{}, &apperrors.AdapterError{Source: Name, Op: "GetTransaction", Err: err}
	}
	return convertTx(t), nil
}

type mempoolChainResp struct {
	UnconfirmedCount int64 `json:"unconfirmed_count"`
}

func (a *Adapter) GetMempoolInfo(ctx context.Context) (models.MempoolSnapshot, error) {
	var c mempoolChainResp
	if err := a.client.GetJSON(ctx, a.withToken(""), nil, &c); err != nil {
		return models.MempoolSnapshot{}, &apperrors.AdapterError{Source: Name, Op: "GetMempoolInfo", Err: err}
	}
	return models.MempoolSnapshot{
		Timestamp:  time.Now().UTC(),
		PendingTxs: c.UnconfirmedCount,
	}, nil
}

// GetRecommendedFees: BlockCypher exposes high/medium/low fee-per-kb
// figures on the chain endpoint, not the fastest/half-hour/hour/economy
// shape mempool.space returns, and this adapter only ever runs as a
// second fallback. It declines rather than approximating the mapping.
func (a *Adapter) GetRecommendedFees(ctx context.Context) (models.RecommendedFees, error) {
	return models.RecommendedFees{}, &apperrors.AdapterCapabilityError{Source: Name, Op: "GetRecommendedFees"}
}

type addrResp struct {
	Address       string `json:"address"`
	TotalReceived int64  `json:"total_received"`
	TotalSent     int64  `json:"total_sent"`
	NTx           int64  `json:"n_tx"`
}

func (a *Adapter) GetAddress(ctx context.Context, address string) (source.AddressInfo, error) {
	var r addrResp
	if err := a.client.GetJSON(ctx, a.withToken("/addrs/"+address+"/balance"), nil, &r); err != nil {
		return source.AddressInfo{}, &apperrors.AdapterError{Source: Name, Op: "GetAddress", Err: err}
	}
	return source.AddressInfo{
		Address:          r.Address,
		TotalReceivedBTC: restutil.SatsToBTC(r.TotalReceived),
		TotalSentBTC:     restutil.SatsToBTC(r.TotalSent),
		TxCount:          r.NTx,
	}, nil
}

var _ source.Adapter = (*Adapter)(nil)
