package identifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesKindPrefix(t *testing.T) {
	kinds := []Kind{KindConsultation, KindConsent, KindReferral, KindPrescription, KindInvoice, KindOrder}
	for _, kind := range kinds {
		id := New(kind)
		assert.True(t, strings.HasPrefix(id, string(kind)+"-"), "id %q should carry prefix %s", id, kind)
		assert.Len(t, strings.Split(id, "-"), 3)
	}
}

func TestNewIsCollisionResistant(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := New(KindInvoice)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate identifier %q", id)
		seen[id] = struct{}{}
	}
}
