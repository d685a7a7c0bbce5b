package processors

import (
	"github.com/shopspring/decimal"
)

// lot is the unsold remainder of one buy transaction. Share only ever
// decreases and never goes negative; the lot leaves the queue exactly when
// it reaches zero.
type lot struct {
	txID         int64
	date         string
	price        decimal.Decimal
	share        decimal.Decimal
	currency     string
	exchangeRate float64
}

// fragment records a single take from the head lot during a consume call.
type fragment struct {
	txID  int64
	date  string
	price decimal.Decimal
	taken decimal.Decimal
}

// lotQueue holds the open buy lots for one symbol, oldest first. Shares are
// decimals so fractional-share consumption hits exact zero instead of
// leaving float residue that would keep a spent lot alive.
type lotQueue struct {
	lots []lot
}

func (q *lotQueue) push(l lot) {
	q.lots = append(q.lots, l)
}

func (q *lotQueue) peekOldest() (lot, bool) {
	if len(q.lots) == 0 {
		return lot{}, false
	}
	return q.lots[0], true
}

func (q *lotQueue) isEmpty() bool {
	return len(q.lots) == 0
}

// consume takes up to qty shares from the head of the queue, oldest lot
// first, and returns the fragments actually taken in order. If the queue
// empties before qty is satisfied the remainder is simply left unconsumed;
// the caller decides what an under-fill means.
func (q *lotQueue) consume(qty decimal.Decimal) []fragment {
	var consumed []fragment
	for qty.IsPositive() && len(q.lots) > 0 {
		head := &q.lots[0]
		taken := decimal.Min(head.share, qty)

		consumed = append(consumed, fragment{
			txID:  head.txID,
			date:  head.date,
			price: head.price,
			taken: taken,
		})

		head.share = head.share.Sub(taken)
		qty = qty.Sub(taken)
		if head.share.IsZero() {
			q.lots = q.lots[1:]
		}
	}
	return consumed
}

// totalShare is the sum of remaining shares across all open lots.
func (q *lotQueue) totalShare() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.lots {
		total = total.Add(l.share)
	}
	return total
}

// totalCost is the sum of remaining share * price across all open lots.
func (q *lotQueue) totalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.lots {
		total = total.Add(l.share.Mul(l.price))
	}
	return total
}
