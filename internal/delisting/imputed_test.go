package delisting

import (
	"testing"
	"time"

	"crsp-equity-lab/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func record(dlstcd *int64, ret, dlret, retx, dlretx *float64) *domain.MonthlyStockRecord {
	return &domain.MonthlyStockRecord{
		Permno: 10001,
		Date:   time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		Dlstcd: dlstcd,
		Ret:    ret,
		Dlret:  dlret,
		Retx:   retx,
		Dlretx: dlretx,
	}
}

func wantFloat(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("Expected %s = %v, got nil", name, want)
	}
	if *got != want {
		t.Errorf("Expected %s = %v, got %v", name, want, *got)
	}
}

func wantNil(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Errorf("Expected %s nil, got %v", name, *got)
	}
}

func TestImputedPolicy_KnownLossCode(t *testing.T) {
	// dlstcd 560 falls in 551-574: missing dlret imputed to -0.30.
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(ptr(int64(560)), nil, nil, nil, nil),
	})

	if len(out) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(out))
	}
	wantFloat(t, "dlret", out[0].Dlret, -0.30)
	wantFloat(t, "ret", out[0].Ret, -0.30) // backfilled from dlret
}

func TestImputedPolicy_FullLossCode(t *testing.T) {
	// dlstcd 400 is >= 200 and outside the known-loss set: full loss.
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(ptr(int64(400)), nil, nil, nil, nil),
	})

	wantFloat(t, "dlret", out[0].Dlret, -1.00)
	wantFloat(t, "ret", out[0].Ret, -1.00)
}

func TestImputedPolicy_CodeBoundaries(t *testing.T) {
	cases := []struct {
		code int64
		want float64
	}{
		{500, -0.30},
		{520, -0.30},
		{551, -0.30},
		{574, -0.30},
		{580, -0.30},
		{584, -0.30},
		{550, -1.00}, // adjacent to the 551-574 range but outside it
		{575, -1.00},
		{200, -1.00},
	}

	for _, tc := range cases {
		out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
			record(ptr(tc.code), nil, nil, nil, nil),
		})
		if out[0].Dlret == nil || *out[0].Dlret != tc.want {
			t.Errorf("Code %d: expected dlret %v, got %v", tc.code, tc.want, out[0].Dlret)
		}
	}
}

func TestImputedPolicy_CodeBelowThreshold(t *testing.T) {
	// Codes under 200 impute nothing. 100 means still trading.
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(ptr(int64(100)), nil, nil, nil, nil),
	})

	wantNil(t, "dlret", out[0].Dlret)
	wantNil(t, "ret", out[0].Ret)
}

func TestImputedPolicy_NoDelistingEvent(t *testing.T) {
	// Null code, null dlret: nothing to impute, ret passes through.
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(nil, ptr(0.05), nil, nil, nil),
	})

	wantFloat(t, "ret", out[0].Ret, 0.05)
	wantNil(t, "dlret", out[0].Dlret)
}

func TestImputedPolicy_NullCodeNullReturnStaysNull(t *testing.T) {
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(nil, nil, nil, nil, nil),
	})

	// Missing data, not an error.
	wantNil(t, "ret", out[0].Ret)
	wantNil(t, "dlret", out[0].Dlret)
}

func TestImputedPolicy_PresentDlretWins(t *testing.T) {
	// A reported dlret is never overwritten, even for known-loss codes.
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(ptr(int64(560)), nil, ptr(-0.12), nil, nil),
	})

	wantFloat(t, "dlret", out[0].Dlret, -0.12)
	wantFloat(t, "ret", out[0].Ret, -0.12)
}

func TestImputedPolicy_PresentRetNotBackfilled(t *testing.T) {
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(ptr(int64(560)), ptr(0.02), nil, nil, nil),
	})

	wantFloat(t, "dlret", out[0].Dlret, -0.30)
	wantFloat(t, "ret", out[0].Ret, 0.02)
}

func TestImputedPolicy_PairsIndependent(t *testing.T) {
	// dlret reported, dlretx missing: only the capital-gain side is imputed.
	out := (&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{
		record(ptr(int64(560)), nil, ptr(-0.12), nil, nil),
	})

	wantFloat(t, "dlret", out[0].Dlret, -0.12)
	wantFloat(t, "ret", out[0].Ret, -0.12)
	wantFloat(t, "dlretx", out[0].Dlretx, -0.30)
	wantFloat(t, "retx", out[0].Retx, -0.30)
}

func TestImputedPolicy_DoesNotModifyInput(t *testing.T) {
	in := record(ptr(int64(560)), nil, nil, nil, nil)

	(&ImputedPolicy{}).Apply([]*domain.MonthlyStockRecord{in})

	if in.Dlret != nil {
		t.Errorf("Input dlret was modified: %v", *in.Dlret)
	}
	if in.Ret != nil {
		t.Errorf("Input ret was modified: %v", *in.Ret)
	}
}
