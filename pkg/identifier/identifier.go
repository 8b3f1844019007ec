// Package identifier mints business identifiers for workflow entities.
// These are distinct from storage primary keys: they are stable across
// exports and URLs, sortable by creation time, and prefixed per entity
// kind.
package identifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects the identifier prefix for an entity type.
type Kind string

const (
	KindConsultation Kind = "CON"
	KindConsent      Kind = "CNS"
	KindReferral     Kind = "REF"
	KindPrescription Kind = "RX"
	KindInvoice      Kind = "INV"
	KindOrder        Kind = "ORD"
)

// New mints an identifier of the form PREFIX-TTTTTTTTTTT-RRRRRRRR: a
// base-36 millisecond timestamp for sortability followed by eight hex
// characters of uuid-derived entropy for collision resistance.
func New(kind Kind) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	entropy := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", kind, strings.ToUpper(ts), strings.ToUpper(entropy))
}
