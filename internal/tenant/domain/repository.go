package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Tenant, error)
	Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	UpdateSubscription(ctx context.Context, db *gorm.DB, tenant *Tenant) (bool, error)
}
