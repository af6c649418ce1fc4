// Package blockchaininfo adapts the blockchain.info REST API, the first
// fallback source in the priority list. Conversion rules (sat to BTC,
// field renames) mirror a normalized block/tx representation shared
// across adapters.
package blockchaininfo

import (
	"context"
	"fmt"
	"time"

	"github.com/rawblock/onchain-intel/internal/apperrors"
	"github.com/rawblock/onchain-intel/internal/source"
	"github.com/rawblock/onchain-intel/internal/source/restutil"
	"github.com/rawblock/onchain-intel/pkg/models"
)

const Name = "blockchain_info"

type Adapter struct {
	client *restutil.Client
	apiKey string
}

func New(baseURL string, apiKey string, timeout time.Duration, ratePerSec float64) *Adapter {
	return &Adapter{client: restutil.NewClient(baseURL, timeout, ratePerSec), apiKey: apiKey}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) query(extra string) string {
	if a.apiKey == "" {
		return extra
	}
	sep := "?"
	if extra != "" {
		sep = "&"
	}
	return extra + sep + "api_code=" + a.apiKey
}

type latestBlockResp struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
	Time   int64  `json:"time"`
}

func (a *Adapter) GetBlockHeight(ctx context.Context) (int64, error) {
	var lb latestBlockResp
	if err := a.client.GetJSON(ctx, "/latestblock"+"?"+a.query(""), nil, &lb); err != nil {
		return 0, &apperrors.AdapterError{Source: Name, Op: "GetBlockHeight", Err: err}
	}
	return lb.Height, nil
}

type blockTxResp struct {
	Hash string `json:"hash"`
	Fee  int64  `json:"fee"`
	Time int64  `json:"time"`
	Size int    `json:"size"`
	Inputs []struct {
		PrevOut *struct {
			Value int64  `json:"value"`
			Addr  string `json:"addr"`
		} `json:"prev_out"`
	} `json:"inputs"`
	Out []struct {
		Value int64  `json:"value"`
		Addr  string `json:"addr"`
	} `json:"out"`
	BlockHeight *int64 `json:"block_height"`
}

type blockResp struct {
	Hash      string        `json:"hash"`
	Height    int64         `json:"height"`
	Time      int64         `json:"time"`
	NTx       int           `json:"n_tx"`
	Size      int64         `json:"size"`
	Tx        []blockTxResp `json:"tx"`
}

func (a *Adapter) GetBlock(ctx context.Context, height int64) (models.RawBlock, error) {
	var blocks struct {
		Blocks []blockResp `json:"blocks"`
	}
	if err := a.client.GetJSON(ctx, fmt.Sprintf("/block-height/%d?format=json", height), nil, &blocks); err != nil {
		return models.RawBlock{}, &apperrors.AdapterError{Source: Name, Op: "GetBlock", Err: err}
	}
	if len(blocks.Blocks) == 0 {
		return models.RawBlock{}, &apperrors.AdapterError{Source: Name, Op: "GetBlock", Err: fmt.Errorf("no block at height %d", height)}
	}
	b := blocks.Blocks[0]
	return models.RawBlock{
		Height:    b.Height,
		Hash:      b.Hash,
		Timestamp: restutil.UnixSecToTime(b.Time),
		TxCount:   b.NTx,
		SizeBytes: b.Size,
	}, nil
}

func convertTx(t blockTxResp) models.RawTx {
	rt := models.RawTx{
		TxID:      t.Hash,
		BlockHeight: t.BlockHeight,
		Timestamp: restutil.UnixSecToTime(t.Time),
		SizeBytes: t.Size,
	}
	if t.Fee > 0 {
		fee := restutil.SatsToBTC(t.Fee)
		rt.FeeBTC = &fee
	}
	for _, in := range t.Inputs {
		rtIn := models.RawTxInput{}
		if in.PrevOut != nil {
			v := restutil.SatsToBTC(in.PrevOut.Value)
			rtIn.Value = &v
			if in.PrevOut.Addr != "" {
				addr := in.PrevOut.Addr
				rtIn.Address = &addr
			}
		}
		rt.Inputs = append(rt.Inputs, rtIn)
	}
	for _, out := range t.Out {
		rtOut := models.RawTxOutput{Value: restutil.SatsToBTC(out.Value)}
		if out.Addr != "" {
			addr := out.Addr
			rtOut.Address = &addr
		}
		rt.Outputs = append(rt.Outputs, rtOut)
	}
	return rt
}

func (a *Adapter) GetBlockTransactions(ctx context.Context, height int64) ([]models.RawTx, error) {
	var blocks struct {
		Blocks []blockResp `json:"blocks"`
	}
	if err := a.client.GetJSON(ctx, fmt.Sprintf("/block-height/%d?format=json", height), nil, &blocks); err != nil {
		return nil, &apperrors.AdapterError{Source: Name, Op: "GetBlockTransactions", Err: err}
	}
	if len(blocks.Blocks) == 0 {
		return nil, &apperrors.AdapterError{Source: Name, Op: "GetBlockTransactions", Err: fmt.Errorf("no block at height %d", height)}
	}
	out := make([]models.RawTx, 0, len(blocks.Blocks[0].Tx))
	for _, t := range blocks.Blocks[0].Tx {
		out = append(out, convertTx(t))
	}
	return out, nil
}

func (a *Adapter) GetTransaction(ctx context.Context, txid string) (models.RawTx, error) {
	var t blockTxResp
	if err := a.client.GetJSON(ctx, "/rawtx/"+txid, nil, &t); err != nil {
		return models.RawTx{}, &apperrors.AdapterError{Source: Name, Op: "GetTransaction", Err: err}
	}
	return convertTx(t), nil
}

type unconfirmedResp struct {
	Txs []blockTxResp `json:"txs"`
}

func (a *Adapter) GetMempoolInfo(ctx context.Context) (models.MempoolSnapshot, error) {
	var u unconfirmedResp
	if err := a.client.GetJSON(ctx, "/unconfirmed-transactions?format=json", nil, &u); err != nil {
		return models.MempoolSnapshot{}, &apperrors.AdapterError{Source: Name, Op: "GetMempoolInfo", Err: err}
	}
	var sizeBytes int64
	for _, t := range u.Txs {
		sizeBytes += int64(t.Size)
	}
	return models.MempoolSnapshot{
		Timestamp:  time.Now().UTC(),
		PendingTxs: int64(len(u.Txs)),
		SizeMB:     float64(sizeBytes) / 1e6,
		// blockchain.info has no fee-estimation endpoint; recommended fees
		// are left zeroed, and no other adapter fills them in when this
		// snapshot is the one the provider returns.
	}, nil
}

// GetRecommendedFees: blockchain.info exposes no fee-estimation endpoint.
func (a *Adapter) GetRecommendedFees(ctx context.Context) (models.RecommendedFees, error) {
	return models.RecommendedFees{}, &apperrors.AdapterCapabilityError{Source: Name, Op: "GetRecommendedFees"}
}

type multiAddrResp struct {
	Addresses []struct {
		Address        string `json:"address"`
		TotalReceived  int64  `json:"total_received"`
		TotalSent      int64  `json:"total_sent"`
		NTx            int64  `json:"n_tx"`
	} `json:"addresses"`
}

func (a *Adapter) GetAddress(ctx context.Context, address string) (source.AddressInfo, error) {
	var r multiAddrResp
	if err := a.client.GetJSON(ctx, "/multiaddr?active="+address, nil, &r); err != nil {
		return source.AddressInfo{}, &apperrors.AdapterError{Source: Name, Op: "GetAddress", Err: err}
	}
	if len(r.Addresses) == 0 {
		return source.AddressInfo{}, &apperrors.AdapterError{Source: Name, Op: "GetAddress", Err: fmt.Errorf("address not found")}
	}
	addr := r.Addresses[0]
	return source.AddressInfo{
		Address:          addr.Address,
		TotalReceivedBTC: restutil.SatsToBTC(addr.TotalReceived),
		TotalSentBTC:     restutil.SatsToBTC(addr.TotalSent),
		TxCount:          addr.NTx,
	}, nil
}

var _ source.Adapter = (*Adapter)(nil)
