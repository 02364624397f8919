// Package database provides the data access layer for the lending service.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go        # Connection setup, migrations, active-loan index
//	├── transactor.go      # lending.Transactor over GORM transactions
//	├── books/             # Book catalogue and copy counters
//	├── users/             # User accounts and API tokens
//	├── loans/             # Borrow records
//	└── audit/             # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type bound to a *gorm.DB, which may
// be the root connection or a transaction:
//
//	db, err := database.NewDatabase("./library.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	book, err := booksRepo.GetBook(ctx, 42)
//
// The lending engine never sees these types directly. It asks the Database
// for transaction-bound stores:
//
//	err := db.WithinTx(ctx, func(ctx context.Context, s lending.Stores) error {
//		_, err := s.Books.AdjustCopies(ctx, bookID, -1, 1)
//		return err
//	})
//
// # Interface Implementations
//
//   - books.Repository: implements lending.BookStore
//   - users.Repository: implements lending.UserStore
//   - loans.Repository: implements lending.RecordStore
//   - Database: implements lending.Transactor
//
// # Connection Model
//
// SQLite is opened with a single pooled connection, BEGIN IMMEDIATE
// transactions and a busy timeout, so write transactions serialize. Code
// running inside WithinTx must only use the stores it was handed; touching
// the root handle there would wait on the connection held by the transaction.
package database
