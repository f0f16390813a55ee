package inventorycount

import "batchledger/internal/core/numerator"

const (
	// CodePrefix is the numbering prefix (e.g. IC-2026-00001).
	CodePrefix = "IC"

	// NumeratorStrategy: count sheets are internal working documents,
	// gaps after restarts are acceptable.
	NumeratorStrategy = numerator.StrategyCached
)
