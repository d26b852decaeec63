package openshelf

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Zone is a blob-storage prefix. The bucket is partitioned into four zones,
// one per lifecycle state.
type Zone string

const (
	ZoneIntake     Zone = "intake"
	ZoneReview     Zone = "review"
	ZonePublic     Zone = "public"
	ZoneQuarantine Zone = "quarantine"
)

// Zones lists every zone, in lifecycle order.
func Zones() []Zone {
	return []Zone{ZoneIntake, ZoneReview, ZonePublic, ZoneQuarantine}
}

// ZoneForStatus returns the zone a blob must live in for the given status.
// A book rejected before classification has no blob at all, so REJECTED maps
// to quarantine only for post-review rejections.
func ZoneForStatus(s BookStatus) Zone {
	switch s {
	case StatusPending:
		return ZoneReview
	case StatusApproved:
		return ZonePublic
	case StatusRejected:
		return ZoneQuarantine
	default:
		return ZoneIntake
	}
}

// BuildKey composes the canonical object key for a book's file in a zone:
// "{zone}/{bookID}/{fileName}".
func BuildKey(zone Zone, bookID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", zone, bookID, fileName)
}

// RezoneKey rewrites an object key into another zone. Relocations are always
// prefix rewrites, never arbitrary renames, so the mapping between zones stays
// mechanical and reversible.
func RezoneKey(key string, to Zone) (string, error) {
	_, rest, err := splitKey(key)
	if err != nil {
		return "", err
	}
	return string(to) + "/" + rest, nil
}

// KeyZone returns the zone prefix of an object key.
func KeyZone(key string) (Zone, error) {
	zone, _, err := splitKey(key)
	return zone, err
}

// ZoneVariants returns the key rewritten into every zone. Used for defensive
// cleanup when the stored key may disagree with where the blob actually lives.
func ZoneVariants(key string) []string {
	_, rest, err := splitKey(key)
	if err != nil {
		return []string{key}
	}
	variants := make([]string, 0, len(Zones()))
	for _, z := range Zones() {
		variants = append(variants, string(z)+"/"+rest)
	}
	return variants
}

func splitKey(key string) (Zone, string, error) {
	prefix, rest, ok := strings.Cut(key, "/")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("malformed object key %q", key)
	}
	zone := Zone(prefix)
	switch zone {
	case ZoneIntake, ZoneReview, ZonePublic, ZoneQuarantine:
		return zone, rest, nil
	}
	return "", "", fmt.Errorf("object key %q has unknown zone prefix %q", key, prefix)
}
