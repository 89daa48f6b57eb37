package delisting

import (
	"crsp-equity-lab/internal/domain"
)

// ImputedPolicy fills missing delisting returns from the delisting code,
// following chapter 7 of Bali, Engle and Murray, "Empirical Asset Pricing:
// The Cross Section of Stock Returns" (2016):
//
//   - codes 500, 520, 580, 584 and 551 through 574 mark liquidations and
//     exchange moves with a known average loss, imputed as -0.30
//   - any other non-null code >= 200 is treated as a full loss, -1.00
//   - everything else is left as is
//
// After imputation, missing primary returns are backfilled from the
// delisting returns. The pair (ret, dlret) and the capital-gain pair
// (retx, dlretx) are adjusted independently.
type ImputedPolicy struct{}

// Name returns the policy identifier.
func (p *ImputedPolicy) Name() string { return PolicyImputed }

// Apply adjusts each record and returns the adjusted copies.
func (p *ImputedPolicy) Apply(records []*domain.MonthlyStockRecord) []*domain.MonthlyStockRecord {
	out := make([]*domain.MonthlyStockRecord, 0, len(records))
	for _, r := range records {
		v := *r
		v.Ret, v.Dlret = adjustPair(v.Dlstcd, v.Ret, v.Dlret)
		v.Retx, v.Dlretx = adjustPair(v.Dlstcd, v.Retx, v.Dlretx)
		out = append(out, &v)
	}
	return out
}

// adjustPair imputes a missing delisting return from the code, then
// backfills a missing primary return from the delisting return. A record
// with a null code and a null return stays null; that is missing data, not
// an error.
func adjustPair(dlstcd *int64, primary, delist *float64) (*float64, *float64) {
	if delist == nil && dlstcd != nil {
		switch {
		case knownLossCode(*dlstcd):
			delist = floatPtr(-0.30)
		case *dlstcd >= 200:
			delist = floatPtr(-1.00)
		}
	}
	if primary == nil {
		primary = delist
	}
	return primary, delist
}

// knownLossCode reports whether the delisting code carries the documented
// -0.30 average loss.
func knownLossCode(code int64) bool {
	switch code {
	case 500, 520, 580, 584:
		return true
	}
	return code >= 551 && code <= 574
}

func floatPtr(v float64) *float64 { return &v }

// Ensure ImputedPolicy implements Policy
var _ Policy = (*ImputedPolicy)(nil)
