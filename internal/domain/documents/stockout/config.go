package stockout

import "batchledger/internal/core/numerator"

const (
	// CodePrefix is the numbering prefix (e.g. OUT-2026-00001).
	CodePrefix = "OUT"

	// NumeratorStrategy: issuing documents are numbered without gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
