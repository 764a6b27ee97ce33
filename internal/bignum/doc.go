// Package bignum provides clamped arbitrary-precision integer arithmetic for
// unbounded-growth game counters.
//
// Every value lives in the closed range [0, Max] where Max = 2^1000-1.
// Operations never wrap, never go negative and never panic:
//   - Add and Mul saturate at Max
//   - Sub saturates at 0
//   - Div by zero yields 0
//
// Int is immutable. Copying an Int by value is always safe because the
// underlying *big.Int is never mutated after construction.
package bignum
