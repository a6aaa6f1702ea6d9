// Package repository implements the discussion engine's persistence on gorm.
package repository

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/carecircle/models"
	"github.com/cppla/carecircle/services"
)

// Store is the gorm backed services.Store.
type Store struct {
	db *gorm.DB
}

var _ services.Store = (*Store)(nil)

// New wraps an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Models lists every table the engine owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Forum{},
		&models.Category{},
		&models.ForumMember{},
		&models.Post{},
		&models.PostTag{},
		&models.Reply{},
		&models.Vote{},
		&models.Document{},
	}
}

// Migrate creates or extends the schema.
func Migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(Models()...), "repository:Migrate: AutoMigrate")
}
