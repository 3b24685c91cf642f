// Copyright (c) 2025 Quantfeed Corp

package compress

// Context is the reusable scratch state shared by the columnar encoders and
// decoders. It is owned by the caller (typically a long-lived serializer)
// and passed by pointer so per-segment work does not reallocate the
// auxiliary vectors.
type Context struct {
	ScaledI64 []int64
	ScaledU64 []uint64
	DeltasU32 []uint32
	DeltasU64 []uint64
	ValuesU32 []uint32
	ValuesU64 []uint64
	CodesU32  []uint32
	TokensU32 []uint32
	TokensU64 []uint64
}

// NewContext returns an empty scratch context.
func NewContext() *Context {
	return &Context{}
}

// i64 returns ScaledI64 resized to n.
func (c *Context) i64(n int) []int64 {
	if cap(c.ScaledI64) < n {
		c.ScaledI64 = make([]int64, n)
	}
	c.ScaledI64 = c.ScaledI64[:n]
	return c.ScaledI64
}

// u64 returns ScaledU64 resized to n.
func (c *Context) u64(n int) []uint64 {
	if cap(c.ScaledU64) < n {
		c.ScaledU64 = make([]uint64, n)
	}
	c.ScaledU64 = c.ScaledU64[:n]
	return c.ScaledU64
}

// codes returns CodesU32 resized to n.
func (c *Context) codes(n int) []uint32 {
	if cap(c.CodesU32) < n {
		c.CodesU32 = make([]uint32, n)
	}
	c.CodesU32 = c.CodesU32[:n]
	return c.CodesU32
}
