package openshelf

import "time"

// StatusChange enumerates every field a lifecycle transition mutates. Each
// transition has exactly one constructor below, so the full set of dependent
// changes (new key, index membership, expiry, review stamp) is visible and
// type-checked in one place instead of being assembled ad hoc by callers.
//
// Repositories must apply a StatusChange as a single conditional update whose
// precondition is the expected current status; they must never read-modify-write.
type StatusChange struct {
	To BookStatus

	// StorageKey is the blob's new location. Empty means the key is unchanged
	// (rejection at intake deletes the blob instead of relocating it).
	StorageKey string

	// DetectedContentType is set on the classification transition only.
	DetectedContentType string

	// ClearExpiry removes the draft TTL attribute. Set on every transition
	// out of UPLOADING.
	ClearExpiry bool

	// EnterPendingIndex / LeavePendingIndex control membership in the
	// by-status secondary index. The index entry exists iff status == PENDING,
	// so entering is paired with To==PENDING and leaving with any transition
	// out of PENDING.
	EnterPendingIndex bool
	LeavePendingIndex bool

	// Review is the moderator stamp for APPROVED/REJECTED decisions.
	Review *ReviewOutcome
}

// ChangeToPending is the classification transition for an allowed content
// type: blob relocated intake -> review, detected type recorded, draft expiry
// cleared, by-status index entry created.
func ChangeToPending(reviewKey, mediaType string) StatusChange {
	return StatusChange{
		To:                  StatusPending,
		StorageKey:          reviewKey,
		DetectedContentType: mediaType,
		ClearExpiry:         true,
		EnterPendingIndex:   true,
	}
}

// ChangeToRejectedAtIntake is the classification transition for a disallowed
// content type. The blob is deleted rather than relocated, so the storage key
// is left as-is; the by-owner index entry survives so the owner still sees
// the rejected item.
func ChangeToRejectedAtIntake(mediaType, reason string, at time.Time) StatusChange {
	return StatusChange{
		To:                  StatusRejected,
		DetectedContentType: mediaType,
		ClearExpiry:         true,
		Review:              &ReviewOutcome{ReviewerID: "system", Reason: reason, ReviewedAt: at},
	}
}

// ChangeToApproved is the moderator approval: blob relocated review -> public,
// by-status index entry removed, reviewer stamped.
func ChangeToApproved(publicKey, reviewerID string, at time.Time) StatusChange {
	return StatusChange{
		To:                StatusApproved,
		StorageKey:        publicKey,
		LeavePendingIndex: true,
		Review:            &ReviewOutcome{ReviewerID: reviewerID, ReviewedAt: at},
	}
}

// ChangeToRejected is the moderator rejection: blob relocated review ->
// quarantine, by-status index entry removed, reviewer and reason stamped.
func ChangeToRejected(quarantineKey, reviewerID, reason string, at time.Time) StatusChange {
	return StatusChange{
		To:                StatusRejected,
		StorageKey:        quarantineKey,
		LeavePendingIndex: true,
		Review:            &ReviewOutcome{ReviewerID: reviewerID, Reason: reason, ReviewedAt: at},
	}
}

// Apply mutates b in place per the change. Shared by repository
// implementations that materialize the update after the conditional check.
func (c StatusChange) Apply(b *Book, now time.Time) {
	b.Status = c.To
	if c.StorageKey != "" {
		b.StorageKey = c.StorageKey
	}
	if c.DetectedContentType != "" {
		b.DetectedContentType = c.DetectedContentType
	}
	if c.ClearExpiry {
		b.ExpiresAt = nil
	}
	if c.Review != nil {
		review := *c.Review
		b.Review = &review
	}
	b.UpdatedAt = now
}
