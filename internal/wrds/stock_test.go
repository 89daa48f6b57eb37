package wrds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PullMonthlyStock(t *testing.T) {
	client, cleanup := setupWRDS(t)
	defer cleanup()

	ctx := context.Background()

	// Two name windows for 10001 so the month of the name change picks the
	// right comnam; 10002 carries an excluded share code.
	names := []struct {
		permno   float64
		namedt   string
		nameendt string
		shrcd    float64
		exchcd   float64
		comnam   string
	}{
		{10001, "1995-01-01", "2000-05-31", 11, 1, "ACME CORP"},
		{10001, "2000-06-01", "2005-12-31", 11, 1, "ACME HOLDINGS"},
		{10002, "1995-01-01", "2005-12-31", 14, 1, "EXCLUDED TRUST"},
		{10003, "1995-01-01", "2005-12-31", 10, 3, "ZETA INC"},
	}
	for _, n := range names {
		_, err := client.pool.Exec(ctx,
			`INSERT INTO crsp.msenames (permno, namedt, nameendt, shrcd, exchcd, comnam, naics, siccd)
			 VALUES ($1, $2::date, $3::date, $4, $5, $6, '3341', 3674)`,
			n.permno, n.namedt, n.nameendt, n.shrcd, n.exchcd, n.comnam)
		require.NoError(t, err, "failed to seed msenames")
	}

	msf := []struct {
		permno float64
		date   string
		ret    *float64
		prc    *float64
	}{
		{10001, "2000-05-31", ptr(0.02), ptr(10.5)},
		{10001, "2000-06-30", nil, ptr(-8.25)},
		{10002, "2000-05-31", ptr(0.01), ptr(25.0)},
		{10003, "2000-04-28", ptr(-0.015), ptr(42.0)},
		{10003, "2001-01-31", ptr(0.03), ptr(44.0)},
	}
	for _, m := range msf {
		_, err := client.pool.Exec(ctx,
			`INSERT INTO crsp.msf (permno, permco, date, ret, retx, prc, altprc, vol, shrout, cfacshr, cfacpr)
			 VALUES ($1, $2, $3::date, $4, $4, $5, NULL, 1000, 500, 1, 1)`,
			m.permno, m.permno+20000, m.date, m.ret, m.prc)
		require.NoError(t, err, "failed to seed msf")
	}

	// One delisting inside the pull range, one outside it.
	_, err := client.pool.Exec(ctx,
		`INSERT INTO crsp.msedelist (permno, dlstdt, dlstcd, dlret, dlretx)
		 VALUES (10001, '2000-06-28'::date, 560, NULL, -0.3),
		        (10003, '2001-01-15'::date, 400, -1.0, -1.0)`)
	require.NoError(t, err, "failed to seed msedelist")

	records, err := client.PullMonthlyStock(ctx, utcDate(2000, 1, 1), utcDate(2000, 12, 29))
	require.NoError(t, err, "failed to pull monthly stock")
	require.Len(t, records, 3, "expected excluded share code and out-of-range rows to be dropped")

	first := records[0]
	assert.Equal(t, int64(10001), first.Permno)
	assert.True(t, first.Date.Equal(utcDate(2000, 5, 31)))
	require.NotNil(t, first.Comnam)
	assert.Equal(t, "ACME CORP", *first.Comnam)
	require.NotNil(t, first.Ret)
	assert.InDelta(t, 0.02, *first.Ret, 1e-12)
	assert.Nil(t, first.Dlstcd, "no delisting event that month")
	require.NotNil(t, first.ShrCd)
	assert.Equal(t, int64(11), *first.ShrCd)
	require.NotNil(t, first.SicCd)
	assert.Equal(t, int64(3674), *first.SicCd)

	second := records[1]
	assert.Equal(t, int64(10001), second.Permno)
	assert.True(t, second.Date.Equal(utcDate(2000, 6, 30)))
	require.NotNil(t, second.Comnam)
	assert.Equal(t, "ACME HOLDINGS", *second.Comnam, "name window starting mid-year should apply")
	assert.Nil(t, second.Ret)
	require.NotNil(t, second.Prc)
	assert.InDelta(t, -8.25, *second.Prc, 1e-12)
	require.NotNil(t, second.Dlstcd, "delisting in the same calendar month should join")
	assert.Equal(t, int64(560), *second.Dlstcd)
	assert.Nil(t, second.Dlret)
	require.NotNil(t, second.Dlretx)
	assert.InDelta(t, -0.3, *second.Dlretx, 1e-12)

	third := records[2]
	assert.Equal(t, int64(10003), third.Permno)
	assert.True(t, third.Date.Equal(utcDate(2000, 4, 28)))
	assert.Nil(t, third.Dlstcd, "delisting outside the pulled months should not join")
}

func TestClient_PullMonthlyStock_Empty(t *testing.T) {
	client, cleanup := setupWRDS(t)
	defer cleanup()

	records, err := client.PullMonthlyStock(context.Background(), utcDate(1990, 1, 1), utcDate(1990, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, records)
}
