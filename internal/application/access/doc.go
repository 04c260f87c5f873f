// Package access is the secure multi-tenant data-access layer.
//
// Every read and write of tenant data goes through an Executor:
//
//	decision -> apply tenant context -> run body -> validate ownership -> clear context
//
// Reads are described by a Query, writes by a Mutation. Both take the
// caller's tenant.Session explicitly; the package keeps no "current tenant"
// state of its own. Query results are cached under keys that always end with
// the tenant id, and successful mutations invalidate the keys they declare.
//
// Mutations that lose a race on a trigger-assigned sequence number are retried
// according to a RetryPolicy. Records whose owner tenant differs from the
// session tenant are never returned; they fail the operation with a
// SecurityViolationError.
package access
