package processors

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestConsumeAcrossLots(t *testing.T) {
	q := &lotQueue{}
	q.push(lot{txID: 1, date: "2024-01-01", price: dec("10"), share: dec("100")})
	q.push(lot{txID: 2, date: "2024-02-01", price: dec("20"), share: dec("50")})

	frags := q.consume(dec("120"))
	if len(frags) != 2 {
		t.Fatalf("fragments = %d, want 2", len(frags))
	}
	if !frags[0].taken.Equal(dec("100")) || frags[0].txID != 1 {
		t.Fatalf("first fragment = %v shares from tx %d, want 100 from tx 1", frags[0].taken, frags[0].txID)
	}
	if !frags[1].taken.Equal(dec("20")) || frags[1].txID != 2 {
		t.Fatalf("second fragment = %v shares from tx %d, want 20 from tx 2", frags[1].taken, frags[1].txID)
	}

	head, ok := q.peekOldest()
	if !ok {
		t.Fatal("queue unexpectedly empty after partial consume")
	}
	if head.txID != 2 || !head.share.Equal(dec("30")) {
		t.Fatalf("remaining head = tx %d with %v shares, want tx 2 with 30", head.txID, head.share)
	}
}

func TestConsumeRemovesLotAtExactZero(t *testing.T) {
	q := &lotQueue{}
	q.push(lot{txID: 1, date: "2024-01-01", price: dec("10"), share: dec("5")})

	q.consume(dec("5"))
	if !q.isEmpty() {
		t.Fatalf("queue still holds %d lots after full consume", len(q.lots))
	}
}

func TestConsumeFractionalSharesNoResidue(t *testing.T) {
	// 0.1 + 0.2 style drift would keep a float-based lot alive at ~1e-17.
	q := &lotQueue{}
	q.push(lot{txID: 1, date: "2024-01-01", price: dec("10"), share: dec("0.3")})

	q.consume(dec("0.1"))
	q.consume(dec("0.1"))
	q.consume(dec("0.1"))
	if !q.isEmpty() {
		head, _ := q.peekOldest()
		t.Fatalf("queue not empty, head holds %v shares", head.share)
	}
}

func TestConsumeUnderfillStopsWithoutError(t *testing.T) {
	q := &lotQueue{}
	q.push(lot{txID: 1, date: "2024-01-01", price: dec("10"), share: dec("4")})

	frags := q.consume(dec("10"))
	total := decimal.Zero
	for _, f := range frags {
		total = total.Add(f.taken)
	}
	if !total.Equal(dec("4")) {
		t.Fatalf("consumed %v shares, want 4 (everything available)", total)
	}
	if !q.isEmpty() {
		t.Fatal("queue should be empty after draining consume")
	}
}

func TestConsumePreservesUntouchedOrder(t *testing.T) {
	q := &lotQueue{}
	q.push(lot{txID: 1, date: "2024-01-01", price: dec("10"), share: dec("1")})
	q.push(lot{txID: 2, date: "2024-02-01", price: dec("11"), share: dec("1")})
	q.push(lot{txID: 3, date: "2024-03-01", price: dec("12"), share: dec("1")})

	q.consume(dec("1"))
	if q.lots[0].txID != 2 || q.lots[1].txID != 3 {
		t.Fatalf("remaining order = [%d %d], want [2 3]", q.lots[0].txID, q.lots[1].txID)
	}
}

func TestTotalsTrackConsumption(t *testing.T) {
	q := &lotQueue{}
	q.push(lot{txID: 1, date: "2024-01-01", price: dec("10"), share: dec("100")})
	q.push(lot{txID: 2, date: "2024-02-01", price: dec("20"), share: dec("50")})

	before := q.totalShare()
	q.consume(dec("30"))
	after := q.totalShare()
	if !before.Sub(after).Equal(dec("30")) {
		t.Fatalf("total share dropped by %v, want 30", before.Sub(after))
	}
	if !q.totalCost().Equal(dec("1700")) { // 70*10 + 50*20
		t.Fatalf("total cost = %v, want 1700", q.totalCost())
	}
}
