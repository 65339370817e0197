// Package resultset models generic query results over operator-defined
// tables: typed column headers with optional dropdown values, and rows of
// tagged values that render consistently regardless of which engine
// produced them.
package resultset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

// Value is one cell of a resultset row. Each variant controls its own JSON
// and CSV rendering, so a DATE fetched from MySQL and one fetched from
// PostgreSQL serialize identically.
type Value interface {
	MarshalJSON() ([]byte, error)
	CSV() string
}

// NullValue is an absent cell.
type NullValue struct{}

func (NullValue) MarshalJSON() ([]byte, error) { return []byte("null"), nil }
func (NullValue) CSV() string                  { return "" }

// TextValue renders as a JSON string.
type TextValue string

func (v TextValue) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(v))), nil
}
func (v TextValue) CSV() string { return string(v) }

// IntegerValue renders as a bare JSON number.
type IntegerValue int64

func (v IntegerValue) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(v), 10)), nil
}
func (v IntegerValue) CSV() string { return strconv.FormatInt(int64(v), 10) }

// DecimalValue holds the engine's exact decimal text and renders it as a
// bare JSON number, never passing through float64.
type DecimalValue string

func (v DecimalValue) MarshalJSON() ([]byte, error) { return []byte(v), nil }
func (v DecimalValue) CSV() string                  { return string(v) }

// BooleanValue renders as a JSON boolean.
type BooleanValue bool

func (v BooleanValue) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatBool(bool(v))), nil
}
func (v BooleanValue) CSV() string { return strconv.FormatBool(bool(v)) }

// DateValue renders as a [year, month, day] JSON array.
type DateValue struct {
	Year  int
	Month int
	Day   int
}

func (v DateValue) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d,%d]", v.Year, v.Month, v.Day)), nil
}

func (v DateValue) CSV() string {
	return fmt.Sprintf("%04d-%02d-%02d", v.Year, v.Month, v.Day)
}

// DateTimeValue renders as a [year, month, day, hour, minute, second,
// nanosecond] JSON array.
type DateTimeValue struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	Nanos  int
}

func (v DateTimeValue) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d,%d,%d,%d,%d,%d]",
		v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, v.Nanos)), nil
}

func (v DateTimeValue) CSV() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second)
}

// CodeLookupValue is the id of a selected dropdown member, rendered as a
// bare JSON number.
type CodeLookupValue int64

func (v CodeLookupValue) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(v), 10)), nil
}
func (v CodeLookupValue) CSV() string { return strconv.FormatInt(int64(v), 10) }

// NewValue converts a raw driver value into the tagged variant for the
// column's display type. Drivers disagree on raw Go types (MySQL hands back
// []byte for most things, pgx hands back native types), so every plausible
// source type is accepted per variant.
func NewValue(dt dialect.DisplayType, raw any) (Value, error) {
	if raw == nil {
		return NullValue{}, nil
	}
	switch dt {
	case dialect.DisplayInteger:
		n, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return IntegerValue(n), nil
	case dialect.DisplayCodeLookup:
		n, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return CodeLookupValue(n), nil
	case dialect.DisplayDecimal:
		s, err := toDecimalString(raw)
		if err != nil {
			return nil, err
		}
		return DecimalValue(s), nil
	case dialect.DisplayBoolean:
		b, err := toBool(raw)
		if err != nil {
			return nil, err
		}
		return BooleanValue(b), nil
	case dialect.DisplayDate:
		t, err := toTime(raw, "2006-01-02")
		if err != nil {
			return nil, err
		}
		return DateValue{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
	case dialect.DisplayDateTime:
		t, err := toTime(raw, "2006-01-02 15:04:05")
		if err != nil {
			return nil, err
		}
		return DateTimeValue{
			Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
			Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanos: t.Nanosecond(),
		}, nil
	case dialect.DisplayTime:
		return TextValue(toString(raw)), nil
	default:
		return TextValue(toString(raw)), nil
	}
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, errs.New(errs.ErrKindQueryFailed,
			fmt.Sprintf("cannot read %T as integer", raw))
	}
}

func toDecimalString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		s := fmt.Sprint(raw)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", errs.New(errs.ErrKindQueryFailed,
				fmt.Sprintf("cannot read %T as decimal", raw))
		}
		return s, nil
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		// MySQL BIT(1) arrives as a single byte.
		if len(v) == 1 {
			return v[0] != 0 && v[0] != '0', nil
		}
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	default:
		return false, errs.New(errs.ErrKindQueryFailed,
			fmt.Sprintf("cannot read %T as boolean", raw))
	}
}

func toTime(raw any, layout string) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTimeText(v, layout)
	case []byte:
		return parseTimeText(string(v), layout)
	default:
		return time.Time{}, errs.New(errs.ErrKindQueryFailed,
			fmt.Sprintf("cannot read %T as %s", raw, layout))
	}
}

func parseTimeText(s, layout string) (time.Time, error) {
	if t, err := time.Parse(layout, s); err == nil {
		return t, nil
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
	}
	return time.Parse("2006-01-02 15:04:05.999999", s)
}
