package tracking

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goodtune/webtime/internal/storage"
)

// Fingerprint computes a short deterministic digest over a ledger subset.
// It is used purely to detect "nothing changed since the last send" and
// skip redundant transmissions; it is not a security mechanism.
//
// The digest is a djb2 hash over a canonical rendering of the subset:
// dates in ascending order, app names in ascending order within each date,
// one "date:app:totalSeconds:lastUpdated" tuple per cell. Two subsets with
// identical cells produce identical fingerprints regardless of map
// iteration order.
func Fingerprint(subset storage.DailyLedger) string {
	dates := make([]string, 0, len(subset))
	for date := range subset {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var sb strings.Builder
	for _, date := range dates {
		apps := make([]string, 0, len(subset[date]))
		for app := range subset[date] {
			apps = append(apps, app)
		}
		sort.Strings(apps)

		for _, app := range apps {
			cell := subset[date][app]
			sb.WriteString(date)
			sb.WriteByte(':')
			sb.WriteString(app)
			sb.WriteByte(':')
			sb.WriteString(strconv.FormatInt(cell.TotalSeconds, 10))
			sb.WriteByte(':')
			sb.WriteString(cell.LastUpdated)
			sb.WriteByte(';')
		}
	}

	var hash uint32 = 5381
	for _, b := range []byte(sb.String()) {
		hash = hash*33 + uint32(b)
	}
	return strconv.FormatUint(uint64(hash), 16)
}
