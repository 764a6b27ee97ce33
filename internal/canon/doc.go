// Package canon provides the canonical JSON encoding used for snapshot
// checksums.
//
// The encoding follows RFC 8785 ordering rules:
//   - object keys sorted by UTF-16 code units
//   - no HTML escaping, no insignificant whitespace
//   - strings NFC normalized
//
// Numbers are carried verbatim from the source document (the textual form
// written by encoding/json), so a float64 is never re-rounded on the way
// through. Arbitrary-precision integers are expected to arrive already
// tagged as {"$bigint":"..."} objects by internal/bignum.
//
// All checksums are computed via Checksum using SHA-256 with domain
// separation.
package canon
