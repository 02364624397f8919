// Package lending implements the borrowing lifecycle of library books.
//
// The Engine owns the loan state machine:
//
//	BORROWED ──return──▶ RETURNED
//	    │                    ▲
//	  sweep                return
//	    ▼                    │
//	OVERDUE ─────────────────┘   (sweep on OVERDUE only refreshes the fine)
//
// and keeps the aggregate copy counters of every Book consistent with the
// individual borrow records. Persistence is delegated to the BookStore,
// UserStore and RecordStore interfaces; every operation runs inside a single
// transaction opened through a Transactor, so a failed operation leaves no
// partial state behind.
//
// # Outcomes
//
// Operations fail in one of three ways:
//
//   - *DeclinedError: an expected business outcome (no copies left, renewal
//     limit reached, ...). Callers render the Reason; never retried.
//   - ErrConsistencyFault: the copy counters would break. Logged and rolled back.
//   - anything else: a storage failure, safe to retry as a whole.
package lending
