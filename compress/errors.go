// Copyright (c) 2025 Quantfeed Corp

package compress

import dfh "github.com/quantfeed/dfh-go"

func errFrequencyCode(code, limit uint64) error {
	return dfh.OverflowError("frequency code", code, limit)
}
