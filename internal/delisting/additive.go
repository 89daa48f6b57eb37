package delisting

import (
	"crsp-equity-lab/internal/domain"
)

// AdditivePolicy is the simpler comparison variant: a missing dlret is
// treated as zero and persisted as zero, the delisting return is added to
// the raw return, and where the sum is still missing a non-zero dlret wins
// outright. Capital-gain returns (retx, dlretx) are left untouched.
type AdditivePolicy struct{}

// Name returns the policy identifier.
func (p *AdditivePolicy) Name() string { return PolicyAdditive }

// Apply adjusts each record and returns the adjusted copies.
func (p *AdditivePolicy) Apply(records []*domain.MonthlyStockRecord) []*domain.MonthlyStockRecord {
	out := make([]*domain.MonthlyStockRecord, 0, len(records))
	for _, r := range records {
		v := *r

		dlret := 0.0
		if v.Dlret != nil {
			dlret = *v.Dlret
		}
		v.Dlret = floatPtr(dlret)

		if v.Ret != nil {
			v.Ret = floatPtr(*v.Ret + dlret)
		} else if dlret != 0 {
			v.Ret = floatPtr(dlret)
		}

		out = append(out, &v)
	}
	return out
}

// Ensure AdditivePolicy implements Policy
var _ Policy = (*AdditivePolicy)(nil)
