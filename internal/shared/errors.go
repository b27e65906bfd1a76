package shared

import "fmt"

var (
	// Ledger errors
	ErrGistNotFound = fmt.Errorf("gist id not found")
	ErrBadToken     = fmt.Errorf("github token rejected")
	ErrLedgerWrite  = fmt.Errorf("ledger write failed")

	// Catalog errors
	ErrCatalogFetch = fmt.Errorf("channel feed fetch failed")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
