package datatable

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/resultset"
)

func invalidValue(column, raw string) error {
	return errs.Validation("datatable.entry.value.invalid",
		fmt.Sprintf("value %q is not valid for column %q", raw, column)).WithParam(column)
}

// coerceValue turns a document's raw string into the typed bind argument
// for its column. A blank value means NULL for every type except text,
// where it is the empty string.
func coerceValue(h resultset.ColumnHeader, raw string) (any, error) {
	if raw == "" && h.DisplayType != dialect.DisplayText {
		return nil, nil
	}
	switch h.DisplayType {
	case dialect.DisplayInteger, dialect.DisplayCodeLookup:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalidValue(h.Name, raw)
		}
		return n, nil
	case dialect.DisplayDecimal:
		if _, ok := new(big.Rat).SetString(raw); !ok {
			return nil, invalidValue(h.Name, raw)
		}
		return raw, nil
	case dialect.DisplayBoolean:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, invalidValue(h.Name, raw)
		}
		return b, nil
	case dialect.DisplayDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, invalidValue(h.Name, raw)
		}
		return t, nil
	case dialect.DisplayDateTime:
		t, err := parseDateTime(raw)
		if err != nil {
			return nil, invalidValue(h.Name, raw)
		}
		return t, nil
	default:
		return raw, nil
	}
}

func parseDateTime(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", raw)
}

// columnChanged compares a document value against the stored one with
// type-aware equality: decimals compare by numeric value regardless of
// scale, dates by components, and a blank document value equals NULL.
func columnChanged(h resultset.ColumnHeader, raw string, old resultset.Value) (bool, error) {
	if _, isNull := old.(resultset.NullValue); isNull {
		return raw != "", nil
	}
	if raw == "" {
		return true, nil
	}

	switch h.DisplayType {
	case dialect.DisplayInteger, dialect.DisplayCodeLookup:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return false, invalidValue(h.Name, raw)
		}
		switch v := old.(type) {
		case resultset.IntegerValue:
			return int64(v) != n, nil
		case resultset.CodeLookupValue:
			return int64(v) != n, nil
		}
		return true, nil
	case dialect.DisplayDecimal:
		newRat, ok := new(big.Rat).SetString(raw)
		if !ok {
			return false, invalidValue(h.Name, raw)
		}
		v, ok := old.(resultset.DecimalValue)
		if !ok {
			return true, nil
		}
		oldRat, ok := new(big.Rat).SetString(string(v))
		if !ok {
			return true, nil
		}
		return newRat.Cmp(oldRat) != 0, nil
	case dialect.DisplayBoolean:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return false, invalidValue(h.Name, raw)
		}
		v, ok := old.(resultset.BooleanValue)
		if !ok {
			return true, nil
		}
		return bool(v) != b, nil
	case dialect.DisplayDate:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return false, invalidValue(h.Name, raw)
		}
		v, ok := old.(resultset.DateValue)
		if !ok {
			return true, nil
		}
		return v.Year != t.Year() || v.Month != int(t.Month()) || v.Day != t.Day(), nil
	case dialect.DisplayDateTime:
		t, err := parseDateTime(raw)
		if err != nil {
			return false, invalidValue(h.Name, raw)
		}
		v, ok := old.(resultset.DateTimeValue)
		if !ok {
			return true, nil
		}
		return v.Year != t.Year() || v.Month != int(t.Month()) || v.Day != t.Day() ||
			v.Hour != t.Hour() || v.Minute != t.Minute() || v.Second != t.Second(), nil
	default:
		v, ok := old.(resultset.TextValue)
		if !ok {
			return true, nil
		}
		return string(v) != raw, nil
	}
}
