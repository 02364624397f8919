package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/database/users"
	"github.com/mrlokans/lending/internal/lending"
)

var _ lending.Transactor = (*Database)(nil)

// WithinTx runs fn in one transaction. Any error returned by fn rolls it back.
func (d *Database) WithinTx(ctx context.Context, fn func(ctx context.Context, stores lending.Stores) error) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, storesFor(tx))
	})
}

// Stores returns stores bound to the root connection, outside any transaction.
func (d *Database) Stores() lending.Stores {
	return storesFor(d.DB)
}

func storesFor(db *gorm.DB) lending.Stores {
	return lending.Stores{
		Books:   books.NewRepository(db),
		Users:   users.NewRepository(db),
		Records: loans.NewRepository(db),
	}
}
