// Package billing provides the contract billing period model.
//
// Billing periods are tenant-owned and carry an order number that the
// database assigns per tenant on insert. Concurrent inserts for the same
// tenant can collide on that number; callers are expected to retry the
// insert through the guarded mutation executor.
package billing
