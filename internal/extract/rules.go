package extract

import (
	"math"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dgallion1/alertledger/internal/notice"
)

// Sign is the multiplier applied to a parsed amount before it is stored.
type Sign int

const (
	// DebitNegative stores charges as negative milliunits.
	DebitNegative Sign = -1
	// CreditPositive stores amounts as they appear.
	CreditPositive Sign = 1
)

// Rule populates one field of a record from chunk text.
type Rule struct {
	// Label is the exact preceding chunk this rule fires on in
	// header/value layouts. Unpaired layouts ignore it.
	Label string
	Field Field
	// Apply returns the updated record and true when its matcher fired.
	Apply func(rec PartialRecord, value string, sign Sign) (PartialRecord, bool)
}

// RuleSet is evaluated in order; the first rule that fires wins.
type RuleSet []Rule

var (
	amountPattern     = regexp.MustCompile(`[$£€]?\s?(\d{1,3}(?:,\d{3})+|\d+)\.(\d{2})`)
	maskedAccount     = regexp.MustCompile(`\((?:\.{3}|…)\s*(\d{4})\)`)
	endingInAccount   = regexp.MustCompile(`(?i)ending in\s+(\d{4})\b`)
	milliunitsPerUnit = decimal.NewFromInt(1000)
	maxMilliunits     = decimal.NewFromInt(math.MaxInt64)
	minMilliunits     = decimal.NewFromInt(math.MinInt64)
)

var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"1/2/2006",
	"2006-01-02",
}

// ParseAmount finds the first decimal amount in s and converts it to signed
// milliunits, rounding half away from zero. Amounts that do not fit in an
// int64 are rejected.
func ParseAmount(s string, sign Sign) (int64, bool) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "") + "." + m[2])
	if err != nil {
		return 0, false
	}
	milli := d.Mul(milliunitsPerUnit).Mul(decimal.NewFromInt(int64(sign))).Round(0)
	if milli.GreaterThan(maxMilliunits) || milli.LessThan(minMilliunits) {
		return 0, false
	}
	return milli.IntPart(), true
}

// ParseDate parses a bare calendar date in one of the vendor formats.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// ParseDateBeforeAt parses strings like "Jul 15, 2024 at 7:02 PM ET",
// keeping only the part before the standalone "at" token.
func ParseDateBeforeAt(s string) (civil.Date, bool) {
	fields := strings.Fields(s)
	for i, f := range fields {
		if f == "at" {
			fields = fields[:i]
			break
		}
	}
	return ParseDate(strings.Join(fields, " "))
}

// SetAmount stores the first amount found in value. A chunk that carries an
// amount always counts as matched, but zero or out-of-range amounts leave the
// field unset.
func SetAmount(rec PartialRecord, value string, sign Sign) (PartialRecord, bool) {
	if !amountPattern.MatchString(value) {
		return rec, false
	}
	if milli, ok := ParseAmount(value, sign); ok && milli != 0 {
		rec.Amount = milli
	}
	return rec, true
}

// SetMaskedAccount stores the digits of a "(...1234)" account mask.
func SetMaskedAccount(rec PartialRecord, value string, _ Sign) (PartialRecord, bool) {
	m := maskedAccount.FindStringSubmatch(value)
	if m == nil {
		return rec, false
	}
	rec.Account = m[1]
	return rec, true
}

// SetAccountEndingIn stores the digits of an "ending in 1234" phrase.
func SetAccountEndingIn(rec PartialRecord, value string, _ Sign) (PartialRecord, bool) {
	m := endingInAccount.FindStringSubmatch(value)
	if m == nil {
		return rec, false
	}
	rec.Account = m[1]
	return rec, true
}

// SetDateBeforeAt stores the date part of a "<date> at <time> <zone>" value.
func SetDateBeforeAt(rec PartialRecord, value string, _ Sign) (PartialRecord, bool) {
	d, ok := ParseDateBeforeAt(value)
	if !ok {
		return rec, false
	}
	rec.PostedDate = d
	return rec, true
}

// SetDate stores a bare calendar date.
func SetDate(rec PartialRecord, value string, _ Sign) (PartialRecord, bool) {
	d, ok := ParseDate(value)
	if !ok {
		return rec, false
	}
	rec.PostedDate = d
	return rec, true
}

// SetDescription stores value verbatim.
func SetDescription(rec PartialRecord, value string, _ Sign) (PartialRecord, bool) {
	if value == "" {
		return rec, false
	}
	rec.Description = value
	return rec, true
}

// ClaimDescription stores value only if no description was set yet.
func ClaimDescription(rec PartialRecord, value string, sign Sign) (PartialRecord, bool) {
	if rec.Description != "" {
		return rec, false
	}
	return SetDescription(rec, value, sign)
}

// Apply runs the layout's rules against one chunk pair and returns the
// updated record. Rules that do not match leave the record untouched.
func (l Layout) Apply(rec PartialRecord, pair notice.ChunkPair) PartialRecord {
	if pair.Current.Empty() {
		return rec
	}
	for _, r := range l.Rules {
		if l.Mode == HeaderValue && (pair.Preceding.Empty() || r.Label != pair.Preceding.Text) {
			continue
		}
		if next, ok := r.Apply(rec, pair.Current.Text, l.Sign); ok {
			return next
		}
	}
	return rec
}
