// Package rls sets the postgres session variable read by row-level security policies.
package rls

import (
	"strconv"

	"gorm.io/gorm"
)

const SettingName = "app.current_tenant_id"

// WithTenant scopes tx to tenantID for the remainder of the transaction.
// tx must be a transaction; SET LOCAL is a no-op outside one.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	return tx.Exec("SELECT set_config(?, ?, true)", SettingName, strconv.FormatInt(tenantID, 10)).Error
}
