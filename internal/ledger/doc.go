// Package ledger holds the access and billing rules of the product: plan
// lookup, settlement scheduling, bill display status, access usage,
// first-payment pricing and referral accrual.
//
// Every function is a pure function of its arguments. The current date is
// always passed in by the caller and never read from the system clock, so
// results are deterministic and the package is safe for concurrent use.
package ledger
