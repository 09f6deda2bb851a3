package sheets

import (
	"context"

	"pocketmoney/internal/core"
)

// Ports for outbound adapters.
type (
	// RowAppender appends one transaction to the spreadsheet mirror.
	RowAppender interface {
		AppendTransaction(ctx context.Context, t core.Transaction) error
	}
)
