package tracemark

import "github.com/jward/tracemark/internal/store"

// Public type aliases for internal ledger types used in the QueryBuilder API.
// These are Go type aliases (=) and identical to the internal types at
// compile time.

type Store = store.Store
type Run = store.Run
type Document = store.Document
type MarkerRow = store.MarkerRow
