package adjustment

import "batchledger/internal/core/numerator"

const (
	// CodePrefix is the numbering prefix (e.g. ADJ-2026-00001).
	CodePrefix = "ADJ"

	// NumeratorStrategy: adjustments justify stock corrections to
	// auditors, so numbering is gapless.
	NumeratorStrategy = numerator.StrategyStrict
)
