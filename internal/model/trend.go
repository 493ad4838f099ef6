package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// TrendArrow is the normalized glucose direction reported by a CGM.
type TrendArrow uint8

// Trend arrows. The zero value is TrendUnknown.
const (
	TrendUnknown TrendArrow = iota
	TrendNone
	TrendFlat
	TrendFortyFiveUp
	TrendFortyFiveDown
	TrendSingleUp
	TrendSingleDown
	TrendDoubleUp
	TrendDoubleDown
)

var trendNames = [...]string{
	TrendUnknown:       "Unknown",
	TrendNone:          "None",
	TrendFlat:          "Flat",
	TrendFortyFiveUp:   "FortyFiveUp",
	TrendFortyFiveDown: "FortyFiveDown",
	TrendSingleUp:      "SingleUp",
	TrendSingleDown:    "SingleDown",
	TrendDoubleUp:      "DoubleUp",
	TrendDoubleDown:    "DoubleDown",
}

// trendTokens maps case-folded tokens to arrows.
var trendTokens = func() map[string]TrendArrow {
	m := make(map[string]TrendArrow, len(trendNames))
	for i, name := range trendNames {
		m[fold(name)] = TrendArrow(i)
	}
	return m
}()

// ParseTrendArrow maps a source trend token to a TrendArrow.
// It never fails: unrecognized tokens yield TrendUnknown.
func ParseTrendArrow(token string) TrendArrow {
	if a, ok := trendTokens[fold(strings.TrimSpace(token))]; ok {
		return a
	}
	return TrendUnknown
}

// String returns the canonical token.
func (a TrendArrow) String() string {
	if int(a) < len(trendNames) {
		return trendNames[a]
	}
	return trendNames[TrendUnknown]
}

// NightscoutDirection returns the direction string used by Nightscout entries.
func (a TrendArrow) NightscoutDirection() string {
	switch a {
	case TrendNone:
		return "NONE"
	case TrendUnknown:
		return "NOT COMPUTABLE"
	default:
		return a.String()
	}
}

// MarshalText encodes the arrow as its canonical token.
func (a TrendArrow) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes any token; unknown tokens become TrendUnknown.
func (a *TrendArrow) UnmarshalText(text []byte) error {
	*a = ParseTrendArrow(string(text))
	return nil
}

// fold returns the Unicode case-folded form of s.
// A Caser keeps state, so one is created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
