package tenant

import (
	"strings"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantCallback adds the tenant filter taken from the statement context to
// query, row, update and delete statements
type TenantCallback struct {
	tenantColumn string
	required     bool
	exempt       map[string]struct{}
}

// NewTenantCallback creates a callback handler. Tables listed in exempt carry
// no tenant column and are never filtered.
func NewTenantCallback(tenantColumn string, required bool, exempt ...string) *TenantCallback {
	if tenantColumn == "" {
		tenantColumn = "tenant_id"
	}
	tc := &TenantCallback{
		tenantColumn: tenantColumn,
		required:     required,
		exempt:       make(map[string]struct{}, len(exempt)),
	}
	for _, table := range exempt {
		tc.exempt[table] = struct{}{}
	}
	return tc
}

// RegisterCallbacks registers tenant callbacks with GORM.
// Creates are not filtered; bodies set tenant_id on inserted rows.
func (tc *TenantCallback) RegisterCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant:before_query", tc.addTenantFilter); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant:before_row", tc.addTenantFilter); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant:before_update", tc.addTenantFilter); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant:before_delete", tc.addTenantFilter)
}

func (tc *TenantCallback) addTenantFilter(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Unscoped {
		return
	}
	// Raw SQL carries its own filter
	if db.Statement.SQL.Len() > 0 {
		return
	}
	if _, ok := tc.exempt[tc.tableName(db)]; ok {
		return
	}
	if tc.hasTenantCondition(db) {
		return
	}

	tenantID := logger.GetTenantID(db.Statement.Context)
	if tenantID == "" {
		if tc.required {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: tc.tenantColumn},
				Value:  tenantID,
			},
		},
	})
}

func (tc *TenantCallback) tableName(db *gorm.DB) string {
	if db.Statement.Table != "" {
		return db.Statement.Table
	}
	if db.Statement.Schema != nil {
		return db.Statement.Schema.Table
	}
	return ""
}

// hasTenantCondition reports whether the WHERE clause already filters on the
// tenant column
func (tc *TenantCallback) hasTenantCondition(db *gorm.DB) bool {
	whereClause, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if tc.exprContainsTenant(expr) {
			return true
		}
	}
	return false
}

func (tc *TenantCallback) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.tenantColumn
		}
		if col, ok := e.Column.(string); ok {
			return col == tc.tenantColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.tenantColumn
		}
	case clause.Expr:
		return strings.Contains(e.SQL, tc.tenantColumn)
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

// EnableAutoTenantFilter registers a required tenant filter on db for every
// table except the exempt ones
func EnableAutoTenantFilter(db *gorm.DB, exempt ...string) error {
	return NewTenantCallback("tenant_id", true, exempt...).RegisterCallbacks(db)
}
