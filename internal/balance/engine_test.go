package balance

import (
	"math"
	"testing"

	"github.com/mmynk/partyledger/internal/models"
)

func expense(id string, paidBy map[string]int64, shares map[string]models.Share) models.Expense {
	return models.Expense{ID: id, Name: id, PaidBy: paidBy, Shares: shares}
}

func TestPairwiseDifference(t *testing.T) {
	tests := []struct {
		name     string
		expenses []models.Expense
		u, v     string
		want     int64
	}{
		{
			name: "even split, v owes u half",
			expenses: []models.Expense{
				expense("e1",
					map[string]int64{"a": 1000},
					map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
				),
			},
			u: "a", v: "b",
			want: 500,
		},
		{
			name: "exact share",
			expenses: []models.Expense{
				expense("e1",
					map[string]int64{"a": 1000},
					map[string]models.Share{"a": models.Exact(300), "b": models.Exact(700)},
				),
			},
			u: "a", v: "b",
			want: 700,
		},
		{
			name: "offsetting expenses net out",
			expenses: []models.Expense{
				expense("e1",
					map[string]int64{"a": 1000},
					map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
				),
				expense("e2",
					map[string]int64{"b": 1000},
					map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
				),
			},
			u: "a", v: "b",
			want: 0,
		},
		{
			name: "transfer settles debt",
			expenses: []models.Expense{
				expense("e1",
					map[string]int64{"a": 1000},
					map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
				),
				{
					ID:       "e2",
					PaidBy:   map[string]int64{"b": 500},
					Shares:   map[string]models.Share{"a": models.Exact(500)},
					Transfer: true,
				},
			},
			u: "a", v: "b",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PairwiseDifference(tt.u, tt.v, tt.expenses)
			if got != tt.want {
				t.Errorf("PairwiseDifference(%s, %s) = %d, want %d", tt.u, tt.v, got, tt.want)
			}
			// Antisymmetry must hold for any pair.
			if rev := PairwiseDifference(tt.v, tt.u, tt.expenses); rev != -tt.want {
				t.Errorf("PairwiseDifference(%s, %s) = %d, want %d", tt.v, tt.u, rev, -tt.want)
			}
		})
	}
}

func TestBalancesForChunkScenario(t *testing.T) {
	// Party {A, B}; A pays 1000, divided evenly.
	expenses := []models.Expense{
		expense("e1",
			map[string]int64{"A": 1000},
			map[string]models.Share{"A": models.Divide(1), "B": models.Divide(1)},
		),
	}
	balances := BalancesForChunk(expenses, []string{"A", "B"})

	if got := balances["A"].Balance; got != 500 {
		t.Errorf("A balance = %d, want 500", got)
	}
	if got := balances["B"].Balance; got != -500 {
		t.Errorf("B balance = %d, want -500", got)
	}
	if got := balances["A"].VisualRatio; got != 1.0 {
		t.Errorf("A visual ratio = %v, want 1.0", got)
	}
	if got := balances["B"].VisualRatio; got != -1.0 {
		t.Errorf("B visual ratio = %v, want -1.0", got)
	}
	if got := balances["A"].Differences["B"]; got != 500 {
		t.Errorf("A/B difference = %d, want 500", got)
	}
}

func TestZeroSumInvariant(t *testing.T) {
	// Uneven amounts, odd remainders, multiple payers, exact and divide
	// shares mixed. The sum over all participants must always be zero.
	participants := []string{"a", "b", "c", "d"}
	expenses := []models.Expense{
		expense("e1",
			map[string]int64{"a": 997},
			map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1), "c": models.Divide(1)},
		),
		expense("e2",
			map[string]int64{"b": 501, "c": 499},
			map[string]models.Share{"a": models.Divide(2), "d": models.Divide(3)},
		),
		expense("e3",
			map[string]int64{"d": 1234},
			map[string]models.Share{"a": models.Exact(200), "b": models.Divide(1), "c": models.Divide(2)},
		),
	}

	balances := BalancesForChunk(expenses, participants)
	var sum int64
	for _, b := range balances {
		sum += b.Balance
	}
	if sum != 0 {
		t.Errorf("sum of balances = %d, want 0", sum)
	}
}

func TestMergeMatchesDirectComputation(t *testing.T) {
	participants := []string{"a", "b", "c"}
	chunkA := []models.Expense{
		expense("e1",
			map[string]int64{"a": 900},
			map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1), "c": models.Divide(1)},
		),
		expense("e2",
			map[string]int64{"b": 250},
			map[string]models.Share{"a": models.Exact(100), "c": models.Exact(150)},
		),
	}
	chunkB := []models.Expense{
		expense("e3",
			map[string]int64{"c": 601},
			map[string]models.Share{"a": models.Divide(1), "b": models.Divide(2)},
		),
	}

	merged := Merge(
		BalancesForChunk(chunkA, participants),
		BalancesForChunk(chunkB, participants),
	)
	direct := BalancesForChunk(append(append([]models.Expense{}, chunkA...), chunkB...), participants)

	for _, id := range participants {
		if merged[id].Balance != direct[id].Balance {
			t.Errorf("%s: merged balance %d != direct %d", id, merged[id].Balance, direct[id].Balance)
		}
		if merged[id].OwedToUser != direct[id].OwedToUser {
			t.Errorf("%s: merged owedToUser %d != direct %d", id, merged[id].OwedToUser, direct[id].OwedToUser)
		}
		if merged[id].UserOwes != direct[id].UserOwes {
			t.Errorf("%s: merged userOwes %d != direct %d", id, merged[id].UserOwes, direct[id].UserOwes)
		}
		for other, net := range direct[id].Differences {
			if merged[id].Differences[other] != net {
				t.Errorf("%s/%s: merged net %d != direct %d", id, other, merged[id].Differences[other], net)
			}
		}
		if math.Abs(merged[id].VisualRatio-direct[id].VisualRatio) > 1e-9 {
			t.Errorf("%s: merged ratio %v != direct %v", id, merged[id].VisualRatio, direct[id].VisualRatio)
		}
	}
}

func TestMergeNetsOppositeDirections(t *testing.T) {
	// The a/b debt runs one way in the first chunk and the other way in
	// the second, so the merged gross fields must come from the netted
	// per-counterparty differences, not from summing per-chunk grosses.
	// c was only a member while the first chunk was live, so c appears in
	// just one of the merged sets.
	chunkA := []models.Expense{
		expense("e1",
			map[string]int64{"a": 1000},
			map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
		),
		expense("e2",
			map[string]int64{"a": 300},
			map[string]models.Share{"c": models.Exact(300)},
		),
	}
	chunkB := []models.Expense{
		expense("e3",
			map[string]int64{"b": 1200},
			map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
		),
	}

	merged := Merge(
		BalancesForChunk(chunkA, []string{"a", "b", "c"}),
		BalancesForChunk(chunkB, []string{"a", "b"}),
	)
	all := append(append([]models.Expense{}, chunkA...), chunkB...)
	direct := BalancesForChunk(all, []string{"a", "b", "c"})

	// a is owed 500 by b and 300 by c in the first chunk, then owes b 600
	// in the second: the a/b pair nets to a owing 100.
	if got := merged["a"].Differences["b"]; got != -100 {
		t.Errorf("a/b merged net = %d, want -100", got)
	}
	if got := merged["a"].OwedToUser; got != 300 {
		t.Errorf("a merged owedToUser = %d, want 300 (c only)", got)
	}
	if got := merged["a"].UserOwes; got != 100 {
		t.Errorf("a merged userOwes = %d, want netted 100", got)
	}

	for _, id := range []string{"a", "b", "c"} {
		if merged[id].Balance != direct[id].Balance {
			t.Errorf("%s: merged balance %d != direct %d", id, merged[id].Balance, direct[id].Balance)
		}
		if merged[id].OwedToUser != direct[id].OwedToUser {
			t.Errorf("%s: merged owedToUser %d != direct %d", id, merged[id].OwedToUser, direct[id].OwedToUser)
		}
		if merged[id].UserOwes != direct[id].UserOwes {
			t.Errorf("%s: merged userOwes %d != direct %d", id, merged[id].UserOwes, direct[id].UserOwes)
		}
		for other, net := range direct[id].Differences {
			if merged[id].Differences[other] != net {
				t.Errorf("%s/%s: merged net %d != direct %d", id, other, merged[id].Differences[other], net)
			}
		}
	}
}

func TestMergeIsAssociative(t *testing.T) {
	participants := []string{"a", "b"}
	mk := func(payer string, cents int64) map[string]models.Balance {
		return BalancesForChunk([]models.Expense{
			expense("e",
				map[string]int64{payer: cents},
				map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
			),
		}, participants)
	}
	x, y, z := mk("a", 1000), mk("b", 600), mk("a", 250)

	left := Merge(Merge(x, y), z)
	right := Merge(x, Merge(y, z))
	for _, id := range participants {
		if left[id].Balance != right[id].Balance {
			t.Errorf("%s: (x+y)+z = %d, x+(y+z) = %d", id, left[id].Balance, right[id].Balance)
		}
	}
}

func TestVisualRatioAllZero(t *testing.T) {
	balances := BalancesForChunk(nil, []string{"a", "b"})
	for id, b := range balances {
		if b.VisualRatio != 0 {
			t.Errorf("%s: visual ratio = %v, want 0 for empty history", id, b.VisualRatio)
		}
	}
}

func TestImpactOnBalanceForUser(t *testing.T) {
	e := expense("e1",
		map[string]int64{"a": 1000},
		map[string]models.Share{"a": models.Divide(1), "b": models.Divide(1)},
	)
	if got := ImpactOnBalanceForUser("a", e); got != 500 {
		t.Errorf("impact on payer = %d, want 500", got)
	}
	if got := ImpactOnBalanceForUser("b", e); got != -500 {
		t.Errorf("impact on ower = %d, want -500", got)
	}
	if got := ImpactOnBalanceForUser("c", e); got != 0 {
		t.Errorf("impact on bystander = %d, want 0", got)
	}
}

func TestResolveSharesRemainderIsDeterministic(t *testing.T) {
	// 1000 over three equal shares: 334/333/333 with the extra cent on
	// the lowest id.
	owed := resolveShares(1000, map[string]models.Share{
		"c": models.Divide(1),
		"a": models.Divide(1),
		"b": models.Divide(1),
	})
	if owed["a"] != 334 || owed["b"] != 333 || owed["c"] != 333 {
		t.Errorf("resolveShares = %v, want a=334 b=333 c=333", owed)
	}
	var sum int64
	for _, v := range owed {
		sum += v
	}
	if sum != 1000 {
		t.Errorf("distributed %d cents, want 1000", sum)
	}
}
