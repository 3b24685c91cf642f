// Copyright (c) 2025 Quantfeed Corp

package dfh

import (
	"math"
	"time"
)

///////////////////////////////////////////////////////////////////////////////

const (
	MsPerSec   uint64 = 1_000
	MsPerMin   uint64 = 60_000
	MsPerHour  uint64 = 3_600_000
	MsPerDay   uint64 = 86_400_000
	MsPerWeek  uint64 = 604_800_000
	SecPerHour uint64 = 3_600
)

// MsToHour returns floor(timeMs / one hour).
func MsToHour(timeMs uint64) uint64 {
	return timeMs / MsPerHour
}

// HourToMs returns the millisecond timestamp of the given unix hour.
func HourToMs(unixHour uint64) uint64 {
	return unixHour * MsPerHour
}

// StartOfHourMs truncates a millisecond timestamp to its hour.
func StartOfHourMs(timeMs uint64) uint64 {
	return timeMs - (timeMs % MsPerHour)
}

// StartOfPeriodMs truncates a millisecond timestamp to the start of the
// given period. A zero period returns the timestamp unchanged.
func StartOfPeriodMs(periodMs uint64, timeMs uint64) uint64 {
	if periodMs == 0 {
		return timeMs
	}
	return timeMs - (timeMs % periodMs)
}

// MsToSec returns floor(timeMs / one second).
func MsToSec(timeMs uint64) uint64 {
	return timeMs / MsPerSec
}

// TimestampMsToTime converts a millisecond timestamp to a UTC time.Time.
func TimestampMsToTime(timeMs uint64) time.Time {
	return time.UnixMilli(int64(timeMs)).UTC()
}

///////////////////////////////////////////////////////////////////////////////

var pow10Table = [19]float64{
	1e0, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9,
	1e10, 1e11, 1e12, 1e13, 1e14, 1e15, 1e16, 1e17, 1e18,
}

var pow10TableU64 = [19]uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000,
	1_000_000_000, 10_000_000_000, 100_000_000_000, 1_000_000_000_000,
	10_000_000_000_000, 100_000_000_000_000, 1_000_000_000_000_000,
	10_000_000_000_000_000, 100_000_000_000_000_000, 1_000_000_000_000_000_000,
}

// Pow10 returns 10^digits as a float64. digits must be <= MaxDigits.
func Pow10(digits uint8) float64 {
	return pow10Table[digits]
}

// Pow10U64 returns 10^digits as a uint64. digits must be <= MaxDigits.
func Pow10U64(digits uint8) uint64 {
	return pow10TableU64[digits]
}

// PrecisionTolerance returns the half step size for the given precision,
// i.e. 0.5 * 10^-digits. Two values closer than this are equal at that
// precision.
func PrecisionTolerance(digits uint8) float64 {
	return 0.5 / pow10Table[digits]
}

// StepSize returns the smallest representable increment at the given
// precision, 10^-digits.
func StepSize(digits uint8) float64 {
	return 1.0 / pow10Table[digits]
}

// ScaleToInt64 converts a value to fixed point at the given precision,
// rounding half away from zero.
func ScaleToInt64(value float64, digits uint8) int64 {
	scaled := value * pow10Table[digits]
	if scaled >= 0 {
		return int64(scaled + 0.5)
	}
	return int64(scaled - 0.5)
}

// ScaleToUint64 converts a non-negative value to fixed point at the given
// precision, rounding half away from zero.
func ScaleToUint64(value float64, digits uint8) uint64 {
	return uint64(value*pow10Table[digits] + 0.5)
}

// UnscaleInt64 converts a fixed-point value back to a float at the given
// precision.
func UnscaleInt64(scaled int64, digits uint8) float64 {
	return float64(scaled) / pow10Table[digits]
}

// UnscaleUint64 converts an unsigned fixed-point value back to a float.
func UnscaleUint64(scaled uint64, digits uint8) float64 {
	return float64(scaled) / pow10Table[digits]
}

// CompareWithPrecision reports whether a and b are equal at the given
// decimal precision: |a-b| < 0.5 * 10^-digits.
func CompareWithPrecision(a, b float64, digits uint8) bool {
	return math.Abs(a-b) < PrecisionTolerance(digits)
}

// NormalizeDouble rounds a value to the given number of decimal places.
func NormalizeDouble(value float64, digits uint8) float64 {
	scale := pow10Table[digits]
	return math.Round(value*scale) / scale
}

// MedianFilter returns the median of three values.
func MedianFilter(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		b = a
	}
	return b
}

// DecimalDigits counts the number of significant decimal places of the
// ASCII decimal in buf, e.g. "10000.250" -> 2. Used by precision
// auto-detection during ingest.
func DecimalDigits(buf []byte) int {
	dot := -1
	end := len(buf)
	for i, ch := range buf {
		if ch == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return 0
	}
	for end > dot+1 && buf[end-1] == '0' {
		end--
	}
	return end - dot - 1
}
