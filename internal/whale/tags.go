package whale

import "strings"

// ExchangeTagSet is an injectable set of address prefixes known to belong
// to exchange hot/cold wallets, used for inflow/outflow flow
// classification.
type ExchangeTagSet struct {
	prefixes map[string]struct{}
}

// DefaultExchangeTags returns a representative seed set of known exchange
// wallet address prefixes. In production this would be loaded from a
// larger, regularly updated tag database (config.ExchangeTagsPath).
func DefaultExchangeTags() *ExchangeTagSet {
	return NewExchangeTagSet([]string{
		"bc1qm34lsc65zpw79lxes69zkqm",
		"1NDyJtNTjmwk5xPNhjgAMu4HDH",
		"3JZq4atUahhuA9rLhXLMhhTo133",
		"3Cbq7aT1tY8kMxWLbitaG7yT6bP",
		"3CD1QW6fjgTwKq3Pj97nty28WZA",
		"bc1qxy2kgdygjrsqtzq2n0yrf24",
		"3FHNBLobJnbCTFTVakh5TXlt",
		"bc1qgdjqv0av3q56jvd82tk",
		"3AfBdeS2QYHSM3PQ9bfXuUbJPMi",
		"bc1qxp3x5mqr6t5mhqkze3vj",
	})
}

// NewExchangeTagSet builds a tag set from a list of address prefixes.
func NewExchangeTagSet(prefixes []string) *ExchangeTagSet {
	s := &ExchangeTagSet{prefixes: make(map[string]struct{}, len(prefixes))}
	for _, p := range prefixes {
		s.prefixes[p] = struct{}{}
	}
	return s
}

// IsTagged reports whether addr matches a known exchange prefix.
func (s *ExchangeTagSet) IsTagged(addr string) bool {
	if s == nil || addr == "" {
		return false
	}
	for p := range s.prefixes {
		if strings.HasPrefix(addr, p) {
			return true
		}
	}
	return false
}
