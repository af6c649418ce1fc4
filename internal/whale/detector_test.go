package whale

import (
	"testing"
	"time"

	"github.com/rawblock/onchain-intel/pkg/models"
)

func addr(s string) *string { return &s }
func val(f float64) *float64 { return &f }

func testDetector() *Detector {
	tags := NewExchangeTagSet([]string{"1Exchange"})
	return NewDetector(FixedThresholds{T: DefaultTiers()}, tags)
}

func TestClassify_TierBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		valueBTC  float64
		wantTier  models.WhaleTier
		wantOK    bool
	}{
		{"below large", 9.99, "", false},
		{"exactly large", 10, models.TierLarge, true},
		{"exactly whale", 100, models.TierWhale, true},
		{"exactly ultra whale", 500, models.TierUltraWhale, true},
		{"exactly leviathan", 1000, models.TierLeviathan, true},
		{"well above leviathan", 5000, models.TierLeviathan, true},
	}

	d := testDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := models.RawTx{
				TxID:      "tx-" + tt.name,
				Timestamp: time.Now(),
				Outputs:   []models.RawTxOutput{{Value: tt.valueBTC, Address: addr("1Random")}},
			}
			wtx, ok := d.Classify(tx)
			if ok != tt.wantOK {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && wtx.Tier != tt.wantTier {
				t.Errorf("Tier = %v, want %v", wtx.Tier, tt.wantTier)
			}
		})
	}
}

func TestClassify_FlowDirection(t *testing.T) {
	d := testDetector()

	t.Run("inflow: majority value lands on exchange output", func(t *testing.T) {
		tx := models.RawTx{
			TxID: "inflow-tx",
			Inputs: []models.RawTxInput{
				{Value: val(50), Address: addr("1Random")},
			},
			Outputs: []models.RawTxOutput{
				{Value: 40, Address: addr("1ExchangeHot")},
			},
		}
		wtx, ok := d.Classify(tx)
		if !ok {
			t.Fatal("expected whale classification")
		}
		if wtx.Flow != models.FlowInflow {
			t.Errorf("Flow = %v, want inflow", wtx.Flow)
		}
	})

	t.Run("outflow: majority value comes from exchange input", func(t *testing.T) {
		tx := models.RawTx{
			TxID: "outflow-tx",
			Inputs: []models.RawTxInput{
				{Value: val(40), Address: addr("1ExchangeHot")},
			},
			Outputs: []models.RawTxOutput{
				{Value: 39, Address: addr("1Random")},
			},
		}
		wtx, ok := d.Classify(tx)
		if !ok {
			t.Fatal("expected whale classification")
		}
		if wtx.Flow != models.FlowOutflow {
			t.Errorf("Flow = %v, want outflow", wtx.Flow)
		}
	})

	t.Run("internal: both sides majority exchange", func(t *testing.T) {
		tx := models.RawTx{
			TxID: "internal-tx",
			Inputs: []models.RawTxInput{
				{Value: val(40), Address: addr("1ExchangeHot")},
			},
			Outputs: []models.RawTxOutput{
				{Value: 39, Address: addr("1ExchangeCold")},
			},
		}
		wtx, ok := d.Classify(tx)
		if !ok {
			t.Fatal("expected whale classification")
		}
		if wtx.Flow != models.FlowInternal {
			t.Errorf("Flow = %v, want internal", wtx.Flow)
		}
	})

	t.Run("unknown: neither side majority exchange", func(t *testing.T) {
		tx := models.RawTx{
			TxID: "unknown-tx",
			Inputs: []models.RawTxInput{
				{Value: val(40), Address: addr("1Random1")},
			},
			Outputs: []models.RawTxOutput{
				{Value: 39, Address: addr("1Random2")},
			},
		}
		wtx, ok := d.Classify(tx)
		if !ok {
			t.Fatal("expected whale classification")
		}
		if wtx.Flow != models.FlowUnknown {
			t.Errorf("Flow = %v, want unknown", wtx.Flow)
		}
	})
}

func TestDominance_ClampedAndZeroSafe(t *testing.T) {
	if d := Dominance(50, 0); d != 0 {
		t.Errorf("Dominance with zero total = %v, want 0", d)
	}
	if d := Dominance(150, 100); d != 1 {
		t.Errorf("Dominance over total = %v, want clamped 1", d)
	}
	if d := Dominance(25, 100); d != 0.25 {
		t.Errorf("Dominance = %v, want 0.25", d)
	}
}

func TestAggregate_SumsAndNetFlow(t *testing.T) {
	whales := []models.WhaleTx{
		{ValueBTC: 100, Flow: models.FlowInflow},
		{ValueBTC: 40, Flow: models.FlowOutflow},
		{ValueBTC: 20, Flow: models.FlowInternal},
	}
	m := Aggregate(whales, 1000)

	if m.Count != 3 {
		t.Errorf("Count = %d, want 3", m.Count)
	}
	if m.TotalVolume != 160 {
		t.Errorf("TotalVolume = %v, want 160", m.TotalVolume)
	}
	if m.InflowBTC != 100 || m.OutflowBTC != 40 {
		t.Errorf("InflowBTC/OutflowBTC = %v/%v, want 100/40", m.InflowBTC, m.OutflowBTC)
	}
	if m.NetFlowBTC != 60 {
		t.Errorf("NetFlowBTC = %v, want 60", m.NetFlowBTC)
	}
	if m.Dominance != 0.16 {
		t.Errorf("Dominance = %v, want 0.16", m.Dominance)
	}
}

func TestValidateAddress(t *testing.T) {
	if !ValidateAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa") {
		t.Error("expected a well-formed mainnet P2PKH address to validate")
	}
	if ValidateAddress("not-a-bitcoin-address") {
		t.Error("expected a malformed address to fail validation")
	}
}

func TestExchangeTagSet_PrefixMatch(t *testing.T) {
	tags := NewExchangeTagSet([]string{"1Exchange"})
	if !tags.IsTagged("1ExchangeHotWallet123") {
		t.Error("expected prefix match to tag the address")
	}
	if tags.IsTagged("1NotAnExchange") {
		t.Error("did not expect an unrelated address to be tagged")
	}
	var nilSet *ExchangeTagSet
	if nilSet.IsTagged("1Exchange") {
		t.Error("nil tag set must never tag anything")
	}
}
