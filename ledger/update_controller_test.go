package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clobcore/domain"
)

type nopSink struct{ persist bool }

func (n nopSink) RealPersist() bool                 { return n.persist }
func (n nopSink) PutBalance(domain.BalanceHistory)  {}
func (n nopSink) PutDeposit(domain.BalanceHistory)  {}
func (n nopSink) PutWithdraw(domain.BalanceHistory) {}
func (n nopSink) PutTransfer(domain.InternalTx)     {}

type recordingSink struct {
	nopSink
	balances  []domain.BalanceHistory
	deposits  int
	withdraws int
}

func (r *recordingSink) PutBalance(h domain.BalanceHistory) { r.balances = append(r.balances, h) }
func (r *recordingSink) PutDeposit(domain.BalanceHistory)   { r.deposits++ }
func (r *recordingSink) PutWithdraw(domain.BalanceHistory)  { r.withdraws++ }

func TestUpdateUserBalanceAddsAndEmits(t *testing.T) {
	l := New(newTestRegistry(), nil)
	c := NewUpdateController(nil)
	sink := &recordingSink{nopSink: nopSink{persist: true}}

	err := c.UpdateUserBalance(l, sink, domain.BalanceUpdateParams{
		Bucket:       domain.BucketAvailable,
		BusinessType: domain.BusinessDeposit,
		UserID:       1,
		BusinessID:   42,
		Asset:        "ETH",
		Business:     "deposit",
		Change:       d("100"),
	})
	require.NoError(t, err)
	require.True(t, l.Get(1, domain.BucketAvailable, "ETH").Equal(d("100")))
	require.Len(t, sink.balances, 1)
	require.Equal(t, 1, sink.deposits)
}

func TestUpdateUserBalanceDuplicateRejected(t *testing.T) {
	l := New(newTestRegistry(), nil)
	c := NewUpdateController(nil)
	sink := &recordingSink{nopSink: nopSink{persist: true}}
	params := domain.BalanceUpdateParams{
		Bucket:       domain.BucketAvailable,
		BusinessType: domain.BusinessDeposit,
		UserID:       1,
		BusinessID:   42,
		Asset:        "ETH",
		Business:     "deposit",
		Change:       d("100"),
	}
	require.NoError(t, c.UpdateUserBalance(l, sink, params))
	err := c.UpdateUserBalance(l, sink, params)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.KindError(domain.KindDuplicateRequest))
	require.True(t, l.Get(1, domain.BucketAvailable, "ETH").Equal(d("100")), "duplicate must not double-apply")
}

func TestUpdateUserBalanceInsufficientRejected(t *testing.T) {
	l := New(newTestRegistry(), nil)
	c := NewUpdateController(nil)
	sink := nopSink{persist: true}
	err := c.UpdateUserBalance(l, sink, domain.BalanceUpdateParams{
		Bucket:       domain.BucketAvailable,
		BusinessType: domain.BusinessWithdraw,
		UserID:       1,
		BusinessID:   7,
		Asset:        "ETH",
		Business:     "withdraw",
		Change:       d("-5"),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.KindError(domain.KindBalanceNotEnough))
	require.True(t, l.Get(1, domain.BucketAvailable, "ETH").IsZero())
}

func TestUpdateUserBalanceZeroChangeNoPersist(t *testing.T) {
	l := New(newTestRegistry(), nil)
	c := NewUpdateController(nil)
	sink := &recordingSink{nopSink: nopSink{persist: true}}
	err := c.UpdateUserBalance(l, sink, domain.BalanceUpdateParams{
		Bucket:       domain.BucketAvailable,
		BusinessType: domain.BusinessTrade,
		UserID:       1,
		BusinessID:   1,
		Asset:        "ETH",
		Business:     "trade",
		Change:       d("0"),
	})
	require.NoError(t, err)
	require.Empty(t, sink.balances, "zero change must not emit a BalanceHistory")
}

func TestTransferMovesBetweenUsers(t *testing.T) {
	l := New(newTestRegistry(), nil)
	c := NewUpdateController(nil)
	sink := &recordingSink{nopSink: nopSink{persist: true}}
	l.Add(1, domain.BucketAvailable, "ETH", d("50"))

	err := c.Transfer(l, sink, 99, 1, 2, "ETH", d("20"), "transfer", "")
	require.NoError(t, err)
	require.True(t, l.Get(1, domain.BucketAvailable, "ETH").Equal(d("30")))
	require.True(t, l.Get(2, domain.BucketAvailable, "ETH").Equal(d("20")))
}
