// Package balance computes pairwise and aggregate debt statistics from
// expense lists. Everything here is pure: the same expense list and
// participant set always produce the same balances, which is what lets
// replicas converge regardless of the order edits arrived in.
package balance

import (
	"sort"

	"github.com/mmynk/partyledger/internal/models"
)

// debtMatrix returns owed[ower][payer] = cents, attributing every cent of
// an expense to exactly one (ower, payer) pair.
//
// Resolution is deterministic: exact shares are taken first, the remainder
// is split across divide units with floor division, and leftover cents go
// one each to divide participants in ascending id order. A participant's
// own share is settled against their own payment first; what remains is
// assigned to payers in ascending id order.
func debtMatrix(e models.Expense) map[string]map[string]int64 {
	total := int64(0)
	for _, cents := range e.PaidBy {
		total += cents
	}
	owed := resolveShares(total, e.Shares)

	// Remaining payment capacity per payer, after self-shares.
	capacity := make(map[string]int64, len(e.PaidBy))
	for id, cents := range e.PaidBy {
		capacity[id] = cents
	}
	for id := range owed {
		if c, isPayer := capacity[id]; isPayer {
			settled := min64(owed[id], c)
			owed[id] -= settled
			capacity[id] = c - settled
		}
	}

	payers := make([]string, 0, len(capacity))
	for id := range capacity {
		payers = append(payers, id)
	}
	sort.Strings(payers)

	owers := make([]string, 0, len(owed))
	for id := range owed {
		owers = append(owers, id)
	}
	sort.Strings(owers)

	matrix := make(map[string]map[string]int64)
	pi := 0
	for _, ower := range owers {
		remaining := owed[ower]
		for remaining > 0 && pi < len(payers) {
			payer := payers[pi]
			if capacity[payer] == 0 {
				pi++
				continue
			}
			amt := min64(remaining, capacity[payer])
			if payer != ower {
				if matrix[ower] == nil {
					matrix[ower] = make(map[string]int64)
				}
				matrix[ower][payer] += amt
			}
			remaining -= amt
			capacity[payer] -= amt
		}
	}
	return matrix
}

// resolveShares distributes total cents across the share map: exact shares
// first, then the remainder over divide units.
func resolveShares(total int64, shares map[string]models.Share) map[string]int64 {
	owed := make(map[string]int64, len(shares))

	remainder := total
	var totalUnits int64
	var divideIDs []string
	for id, s := range shares {
		switch s.Kind {
		case models.ShareExact:
			owed[id] = s.Amount
			remainder -= s.Amount
		case models.ShareDivide:
			totalUnits += s.Units
			divideIDs = append(divideIDs, id)
		}
	}
	if remainder < 0 {
		remainder = 0
	}
	if totalUnits == 0 {
		return owed
	}

	sort.Strings(divideIDs)
	distributed := int64(0)
	for _, id := range divideIDs {
		amt := remainder * shares[id].Units / totalUnits
		owed[id] = amt
		distributed += amt
	}
	// Leftover cents from the floor division, one each in id order.
	for i := 0; distributed < remainder; i = (i + 1) % len(divideIDs) {
		if shares[divideIDs[i]].Units > 0 {
			owed[divideIDs[i]]++
			distributed++
		}
	}
	return owed
}

// PairwiseDifference nets the debts between u and v over the given
// expenses. Positive result means v owes u.
func PairwiseDifference(u, v string, expenses []models.Expense) int64 {
	var vOwesU, uOwesV int64
	for _, e := range expenses {
		m := debtMatrix(e)
		vOwesU += m[v][u]
		uOwesV += m[u][v]
	}
	return vOwesU - uOwesV
}

// StatsForParticipant aggregates u's position against every other
// participant.
func StatsForParticipant(u string, participants []string, expenses []models.Expense) models.Balance {
	b := models.Balance{Differences: make(map[string]int64)}
	for _, other := range participants {
		if other == u {
			continue
		}
		net := PairwiseDifference(u, other, expenses)
		b.Differences[other] = net
		if net > 0 {
			b.OwedToUser += net
		} else if net < 0 {
			b.UserOwes += -net
		}
	}
	b.Balance = b.OwedToUser - b.UserOwes
	return b
}

// BalancesForChunk computes every participant's balance over one chunk's
// expense list, including the UI visual ratio.
func BalancesForChunk(expenses []models.Expense, participants []string) map[string]models.Balance {
	out := make(map[string]models.Balance, len(participants))
	for _, id := range participants {
		out[id] = StatsForParticipant(id, participants, expenses)
	}
	applyVisualRatios(out)
	return out
}

// Merge combines chunk-scoped balance sets. Only the per-counterparty nets
// are summed; the gross OwedToUser/UserOwes fields are re-derived from the
// merged nets, because a debt running one way in one chunk and the other
// way in another nets out pairwise and a gross sum would not. Merging the
// per-chunk results therefore equals computing over the concatenated
// expense lists, and the merge is associative, so total-party balances are
// a fold over per-chunk results and full history is never rescanned.
func Merge(sets ...map[string]models.Balance) map[string]models.Balance {
	out := make(map[string]models.Balance)
	for _, set := range sets {
		for id, b := range set {
			acc, ok := out[id]
			if !ok {
				acc = models.Balance{Differences: make(map[string]int64)}
			}
			for other, net := range b.Differences {
				acc.Differences[other] += net
			}
			out[id] = acc
		}
	}
	for id, acc := range out {
		acc.OwedToUser = 0
		acc.UserOwes = 0
		for _, net := range acc.Differences {
			if net > 0 {
				acc.OwedToUser += net
			} else if net < 0 {
				acc.UserOwes += -net
			}
		}
		acc.Balance = acc.OwedToUser - acc.UserOwes
		out[id] = acc
	}
	applyVisualRatios(out)
	return out
}

// ImpactOnBalanceForUser returns the delta a single expense applies to u's
// net balance.
func ImpactOnBalanceForUser(u string, e models.Expense) int64 {
	m := debtMatrix(e)
	var impact int64
	for _, payer := range mapKeys(m[u]) {
		impact -= m[u][payer]
	}
	for ower, byPayer := range m {
		if ower == u {
			continue
		}
		impact += byPayer[u]
	}
	return impact
}

// applyVisualRatios recomputes every ratio against the current largest
// absolute balance. Must rerun whenever that maximum changes.
func applyVisualRatios(balances map[string]models.Balance) {
	var max int64
	for _, b := range balances {
		if a := abs64(b.Balance); a > max {
			max = a
		}
	}
	for id, b := range balances {
		if max == 0 {
			b.VisualRatio = 0
		} else {
			b.VisualRatio = float64(b.Balance) / float64(max)
		}
		balances[id] = b
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func mapKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
