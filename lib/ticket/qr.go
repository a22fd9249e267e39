// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint hashes a QR payload to the form stored on a ticket.
// The payload itself lives off-ledger; only the BLAKE3 digest is
// recorded, so holding ledger state never suffices to forge a door
// scan.
func Fingerprint(qr []byte) string {
	sum := blake3.Sum256(qr)
	return hex.EncodeToString(sum[:])
}
