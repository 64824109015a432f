package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintLength is the truncated hex length of a device fingerprint
const FingerprintLength = 16

// DeviceFingerprint derives a stable hash from a fixed, ordered set of
// low-entropy request headers. It groups sessions per device and serves as
// a weak anomaly signal on refresh; it is NOT an anti-spoofing control,
// authorization always pairs it with the refresh secret itself.
func DeviceFingerprint(userAgent, acceptLanguage, acceptEncoding string) string {
	raw := strings.Join([]string{userAgent, acceptLanguage, acceptEncoding}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
