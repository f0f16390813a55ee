package stockin

import "batchledger/internal/core/numerator"

const (
	// CodePrefix is the numbering prefix (e.g. IN-2026-00001).
	CodePrefix = "IN"

	// NumeratorStrategy: receiving documents are primary accounting
	// documents, numbered without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
