// Package payload defines the business data carried by a pending payment
// operation, one variant per operation kind.
//
// The reconciliation loop treats payloads as opaque. Only the commit layer
// dispatches on Kind() to a kind-specific writer.
//
// Payloads cross three boundaries:
//   - Persistence: Marshal/Unmarshal use a tagged JSON envelope
//     {"kind": ..., "data": {...}} so a reloaded operation decodes to the
//     right variant.
//   - Validation: Validator checks each variant against an embedded CUE
//     schema before any payment is submitted.
//   - Identity: Hash computes a domain-separated SHA-256 over the NFC
//     normalized JSON form, stored next to committed records for audit.
//
// Key design constraints:
//   - NO float types (amounts are int64 in the currency's smallest unit)
//   - All JSON tags use snake_case
//   - This package imports nothing internal
package payload
