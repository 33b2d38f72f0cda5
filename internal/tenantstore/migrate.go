package tenantstore

import (
	"github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"gorm.io/gorm"
)

// AutoMigrate creates the tenant-scoped tables and their logical-key indexes.
// Postgres deployments use the SQL migrations instead.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return err
	}
	for _, stmt := range domain.UniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
