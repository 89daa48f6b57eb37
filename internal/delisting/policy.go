// Package delisting adjusts monthly security returns for delisting events.
// Two imputation policies exist; callers pick one by name and apply it to a
// batch of records before persisting them.
package delisting

import (
	"errors"

	"crsp-equity-lab/internal/domain"
)

// Policy names accepted by FromName.
const (
	PolicyImputed  = "imputed"
	PolicyAdditive = "additive"
)

var ErrUnknownPolicy = errors.New("unknown delisting policy")

// Policy adjusts returns on a batch of monthly records.
type Policy interface {
	// Apply returns adjusted copies of the records. Input records are
	// never modified; rows carry no cross-row dependency so the order of
	// the batch does not matter.
	Apply(records []*domain.MonthlyStockRecord) []*domain.MonthlyStockRecord

	// Name returns the policy identifier used in run metadata.
	Name() string
}

// FromName creates a Policy from its identifier.
func FromName(name string) (Policy, error) {
	switch name {
	case PolicyImputed:
		return &ImputedPolicy{}, nil
	case PolicyAdditive:
		return &AdditivePolicy{}, nil
	default:
		return nil, ErrUnknownPolicy
	}
}

// Names lists the registered policy identifiers.
func Names() []string {
	return []string{PolicyImputed, PolicyAdditive}
}
