package balance

import (
	"testing"

	"github.com/mmynk/partyledger/internal/models"
)

func balancesOf(nets map[string]int64) map[string]models.Balance {
	out := make(map[string]models.Balance, len(nets))
	for id, net := range nets {
		out[id] = models.Balance{Balance: net}
	}
	return out
}

func TestSimplifyScenario(t *testing.T) {
	// B owes A 500; exactly one transaction with a negative amount.
	txs := Simplify(balancesOf(map[string]int64{"A": 500, "B": -500}))
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	want := models.Transaction{From: "B", To: "A", Amount: -500}
	if txs[0] != want {
		t.Errorf("transaction = %+v, want %+v", txs[0], want)
	}
}

func TestSimplifyZeroesAllBalances(t *testing.T) {
	tests := []struct {
		name string
		nets map[string]int64
	}{
		{
			name: "two debtors one creditor",
			nets: map[string]int64{"a": 900, "b": -400, "c": -500},
		},
		{
			name: "chain of debts",
			nets: map[string]int64{"a": 1000, "b": -300, "c": -300, "d": -400},
		},
		{
			name: "mixed magnitudes",
			nets: map[string]int64{"a": 7, "b": 93, "c": -50, "d": -50},
		},
		{
			name: "already settled",
			nets: map[string]int64{"a": 0, "b": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := Simplify(balancesOf(tt.nets))

			remaining := make(map[string]int64, len(tt.nets))
			for id, net := range tt.nets {
				remaining[id] = net
			}
			for _, tx := range txs {
				if tx.Amount >= 0 {
					t.Errorf("transaction %+v has non-negative amount", tx)
				}
				// From pays -Amount to To.
				remaining[tx.From] -= tx.Amount
				remaining[tx.To] += tx.Amount
			}
			for id, net := range remaining {
				if net != 0 {
					t.Errorf("%s left with %d after settlement, want 0", id, net)
				}
			}

			if max := len(tt.nets) - 1; len(txs) > max {
				t.Errorf("%d transactions for %d participants, want <= %d", len(txs), len(tt.nets), max)
			}
		})
	}
}

func TestSimplifyMatchesLargestFirst(t *testing.T) {
	txs := Simplify(balancesOf(map[string]int64{"big": -800, "small": -200, "x": 1000}))
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].From != "big" {
		t.Errorf("first settlement from %q, want the largest debtor", txs[0].From)
	}
}
