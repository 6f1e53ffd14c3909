package ledger

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/mmynk/partyledger/internal/models"
)

// ContentHash digests an expense's stable fields: id, name, payment
// timestamp, canonically-sorted paidBy and shares, and the joined media
// ids. The digest is djb2 over UTF-16 code units folded to an unsigned
// 32-bit hex string. Intentionally non-cryptographic: fast, deterministic
// and collision-tolerant, used only for conflict hinting between replicas.
func ContentHash(e models.Expense) string {
	var b strings.Builder
	b.WriteString(e.ID)
	b.WriteByte('|')
	b.WriteString(e.Name)
	fmt.Fprintf(&b, "|%d|", e.PaidAt)

	for _, id := range sortedKeys(e.PaidBy) {
		fmt.Fprintf(&b, "%s=%d;", id, e.PaidBy[id])
	}
	b.WriteByte('|')
	shareIDs := make([]string, 0, len(e.Shares))
	for id := range e.Shares {
		shareIDs = append(shareIDs, id)
	}
	sort.Strings(shareIDs)
	for _, id := range shareIDs {
		s := e.Shares[id]
		switch s.Kind {
		case models.ShareExact:
			fmt.Fprintf(&b, "%s=exact:%d;", id, s.Amount)
		case models.ShareDivide:
			fmt.Fprintf(&b, "%s=divide:%d;", id, s.Units)
		}
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(e.MediaIDs, ","))

	return fmt.Sprintf("%08x", djb2(b.String()))
}

// djb2 hashes over UTF-16 code units, matching digests produced by
// JavaScript-side replicas that hash the same canonical string.
func djb2(s string) uint32 {
	h := uint32(5381)
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*33 + uint32(u)
	}
	return h
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
