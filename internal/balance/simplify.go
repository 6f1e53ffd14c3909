package balance

import (
	"sort"

	"github.com/mmynk/partyledger/internal/models"
)

// Simplify reduces a balance set to a short list of settlement
// transactions. Greedy matching of the largest debtor against the largest
// creditor bounds the output to at most participants-1 transactions; it is
// a heuristic, not a guaranteed minimum.
//
// Each transaction's Amount is negative: the change applied to the debt.
func Simplify(balances map[string]models.Balance) []models.Transaction {
	type stake struct {
		id        string
		remaining int64
	}

	var debtors, creditors []stake
	for id, b := range balances {
		switch {
		case b.Balance < 0:
			debtors = append(debtors, stake{id, -b.Balance})
		case b.Balance > 0:
			creditors = append(creditors, stake{id, b.Balance})
		}
	}

	byAmountDesc := func(s []stake) {
		sort.Slice(s, func(i, j int) bool {
			if s[i].remaining != s[j].remaining {
				return s[i].remaining > s[j].remaining
			}
			return s[i].id < s[j].id
		})
	}
	byAmountDesc(debtors)
	byAmountDesc(creditors)

	var txs []models.Transaction
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		transfer := min64(debtors[i].remaining, creditors[j].remaining)
		if transfer > 0 {
			txs = append(txs, models.Transaction{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: -transfer,
			})
		}
		debtors[i].remaining -= transfer
		creditors[j].remaining -= transfer
		if debtors[i].remaining == 0 {
			i++
		}
		if creditors[j].remaining == 0 {
			j++
		}
	}
	return txs
}
