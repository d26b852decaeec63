// Package openshelf implements a moderated document-publishing workflow:
// users upload PDF/EPUB files through presigned write targets, an automated
// content-type gate screens the bytes, a moderator approves or rejects, and
// approved files become readable through signed, time-limited URLs.
//
// The core of the package is the lifecycle state machine (UPLOADING ->
// PENDING -> APPROVED/REJECTED) and the side effects each transition carries:
// blob relocation between storage zones, secondary-index maintenance and
// draft expiry. Storage and metadata backends plug in through the BlobStore
// and Repository interfaces; see the storage/ and repo/ subpackages.
package openshelf
