// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - tenant.go: tenants, read by the tenant resolver
// - catalog.go: products
// - billing.go: contract billing periods, whose order number the database assigns
package models
