package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/dyaogo/pos-superette-sub002/internal/model"
)

// Digest fingerprints a discrepancy list so a commit can prove the caller saw
// exactly the list being applied. Input order matters; ComputeInventoryDiscrepancies
// already returns a stable order.
func Digest(discrepancies []model.Discrepancy) string {
	var b strings.Builder
	for _, d := range discrepancies {
		b.WriteString(d.ProductID.String())
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(d.RecordedStock))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(d.CountedStock))
		b.WriteByte('|')
		b.WriteString(d.ValueImpact.String())
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
