package core

// normalize.go converts raw grid values into the typed values the record
// store accepts.
//
// Normalize is total over (RawKind, DataType): every pair either yields a
// Value, yields the Unsupported marker, or returns a *NormalizationError.
// It never panics and has no side effects.

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v2"
)

// defaultMoneyPrecision is used for money columns that declare no precision.
const defaultMoneyPrecision = 2

// Normalize converts raw into the canonical value for col.
func Normalize(raw RawValue, col ColumnMetadata) (Value, error) {
	if col.ReadOnly {
		return Unsupported(col.Type), nil
	}

	switch col.Type {
	case TypeText:
		return normalizeText(raw, col)
	case TypeInteger:
		return normalizeInteger(raw, col)
	case TypeDecimal, TypeMoney:
		return normalizeDecimal(raw, col)
	case TypeBoolean:
		return normalizeBoolean(raw, col)
	case TypeDateTime:
		return normalizeDateTime(raw, col)
	case TypeOptionSet:
		return normalizeOption(raw, col)
	case TypeMultiSelectOptionSet:
		return normalizeMultiOption(raw, col)
	case TypeLookup, TypeUnsupported:
		return Unsupported(col.Type), nil
	default:
		return Unsupported(col.Type), nil
	}
}

func normalizeText(raw RawValue, col ColumnMetadata) (Value, error) {
	switch raw.kind {
	case RawNull:
		// A cleared text widget is indistinguishable from an untouched one
		return TextValue(""), nil
	case RawString:
		return TextValue(raw.str), nil
	case RawNumber:
		if !isFinite(raw.num) {
			return Value{}, reject(col, raw, "not a finite number")
		}
		return TextValue(formatNumber(raw.num)), nil
	case RawBool:
		return TextValue(strconv.FormatBool(raw.b)), nil
	default:
		return Value{}, reject(col, raw, "a selection cannot be stored as text")
	}
}

// numberFrom extracts a finite number from a numeric or string raw value.
func numberFrom(raw RawValue, col ColumnMetadata) (float64, error) {
	switch raw.kind {
	case RawNumber:
		if !isFinite(raw.num) {
			return 0, reject(col, raw, "not a finite number")
		}
		return raw.num, nil
	case RawString:
		f, ok := parseNumber(raw.str)
		if !ok {
			return 0, reject(col, raw, "invalid number format")
		}
		return f, nil
	default:
		return 0, reject(col, raw, "expected a number, got %s", raw.kind)
	}
}

func checkBounds(f float64, raw RawValue, col ColumnMetadata) error {
	if col.MinValue != nil && f < *col.MinValue {
		return reject(col, raw, "must be at least %s", formatNumber(*col.MinValue))
	}
	if col.MaxValue != nil && f > *col.MaxValue {
		return reject(col, raw, "must be at most %s", formatNumber(*col.MaxValue))
	}
	return nil
}

func normalizeInteger(raw RawValue, col ColumnMetadata) (Value, error) {
	if raw.kind == RawNull || (raw.kind == RawString && strings.TrimSpace(raw.str) == "") {
		return NullValue(col.Type), nil
	}

	f, err := numberFrom(raw, col)
	if err != nil {
		return Value{}, err
	}
	if f != math.Trunc(f) {
		return Value{}, reject(col, raw, "must be a whole number")
	}
	// 2^63 is exactly representable; anything at or beyond it overflows int64
	if f >= math.Exp2(63) || f < -math.Exp2(63) {
		return Value{}, reject(col, raw, "number out of range")
	}
	if err := checkBounds(f, raw, col); err != nil {
		return Value{}, err
	}
	return IntegerValue(int64(f)), nil
}

func normalizeDecimal(raw RawValue, col ColumnMetadata) (Value, error) {
	if raw.kind == RawNull || (raw.kind == RawString && strings.TrimSpace(raw.str) == "") {
		return NullValue(col.Type), nil
	}

	f, err := numberFrom(raw, col)
	if err != nil {
		return Value{}, err
	}

	places := col.Precision
	if places == 0 {
		places = -1
		if col.Type == TypeMoney {
			places = defaultMoneyPrecision
		}
	}
	f = roundTo(f, places)

	if err := checkBounds(f, raw, col); err != nil {
		return Value{}, err
	}
	return DecimalValue(col.Type, f), nil
}

func normalizeBoolean(raw RawValue, col ColumnMetadata) (Value, error) {
	switch raw.kind {
	case RawNull:
		return BooleanValue(false), nil
	case RawBool:
		return BooleanValue(raw.b), nil
	case RawNumber:
		if !isFinite(raw.num) {
			return Value{}, reject(col, raw, "not a finite number")
		}
		return BooleanValue(raw.num != 0), nil
	case RawString:
		if b, ok := parseBoolWord(raw.str); ok {
			return BooleanValue(b), nil
		}
		// Two-state option widgets send their label
		if o, ok := col.optionByLabel(raw.str); ok {
			return BooleanValue(o.Code != 0), nil
		}
		return Value{}, reject(col, raw, "must be yes/no, true/false, or 1/0")
	default:
		sel := raw.sel
		switch {
		case len(sel.Codes) == 1 && len(sel.Labels) == 0:
			if sel.Codes[0] != 0 && sel.Codes[0] != 1 {
				return Value{}, reject(col, raw, "two-state option code must be 0 or 1")
			}
			return BooleanValue(sel.Codes[0] == 1), nil
		case len(sel.Labels) == 1 && len(sel.Codes) == 0:
			return normalizeBoolean(StringRaw(sel.Labels[0]), col)
		default:
			return Value{}, reject(col, raw, "expected a single two-state selection")
		}
	}
}

func normalizeDateTime(raw RawValue, col ColumnMetadata) (Value, error) {
	switch raw.kind {
	case RawNull:
		return NullValue(col.Type), nil
	case RawNumber:
		t, ok := fromUnixMillis(raw.num)
		if !ok {
			return Value{}, reject(col, raw, "invalid epoch milliseconds")
		}
		if col.DateOnly {
			t = truncateToDate(t)
		}
		return DateTimeValue(t), nil
	case RawString:
		if strings.TrimSpace(raw.str) == "" {
			return NullValue(col.Type), nil
		}
		if col.DateOnly {
			if t, ok := parseDateOnly(raw.str); ok {
				return DateTimeValue(t), nil
			}
			return Value{}, reject(col, raw, "invalid date format (use YYYY-MM-DD)")
		}
		if t, ok := parseTimestamp(raw.str); ok {
			return DateTimeValue(t), nil
		}
		return Value{}, reject(col, raw, "timestamp must include a time zone (RFC 3339)")
	default:
		return Value{}, reject(col, raw, "expected a timestamp, got %s", raw.kind)
	}
}

// optionCode converts a numeric widget value to an option code. Codes are
// 32-bit so the conversion is exact on every platform.
func optionCode(f float64) (int, bool) {
	if !isFinite(f) || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// resolveOption maps a single code or label token to an option code.
func resolveOption(token string, col ColumnMetadata) (int, bool) {
	token = strings.TrimSpace(token)
	if code, err := strconv.Atoi(token); err == nil {
		if _, ok := col.optionByCode(code); ok {
			return code, true
		}
	}
	if o, ok := col.optionByLabel(token); ok {
		return o.Code, true
	}
	return 0, false
}

func normalizeOption(raw RawValue, col ColumnMetadata) (Value, error) {
	switch raw.kind {
	case RawNull:
		return NullValue(col.Type), nil
	case RawNumber:
		code, ok := optionCode(raw.num)
		if !ok {
			return Value{}, reject(col, raw, "option code must be a 32-bit whole number")
		}
		if _, ok := col.optionByCode(code); !ok {
			return Value{}, reject(col, raw, "unknown option code %d", code)
		}
		return OptionValue(code), nil
	case RawString:
		if strings.TrimSpace(raw.str) == "" {
			return NullValue(col.Type), nil
		}
		code, ok := resolveOption(raw.str, col)
		if !ok {
			return Value{}, reject(col, raw, "unknown option %q", raw.str)
		}
		return OptionValue(code), nil
	case RawSelection:
		sel := raw.sel
		switch {
		case len(sel.Codes) == 1 && len(sel.Labels) == 0:
			return normalizeOption(NumberRaw(float64(sel.Codes[0])), col)
		case len(sel.Labels) == 1 && len(sel.Codes) == 0:
			return normalizeOption(StringRaw(sel.Labels[0]), col)
		case len(sel.Codes) == 0 && len(sel.Labels) == 0 && sel.Reference == nil:
			return NullValue(col.Type), nil
		default:
			return Value{}, reject(col, raw, "expected exactly one option")
		}
	default:
		return Value{}, reject(col, raw, "expected an option, got %s", raw.kind)
	}
}

func normalizeMultiOption(raw RawValue, col ColumnMetadata) (Value, error) {
	var tokens []string
	var codes []int

	switch raw.kind {
	case RawNull:
		return NullValue(col.Type), nil
	case RawNumber:
		code, ok := optionCode(raw.num)
		if !ok {
			return Value{}, reject(col, raw, "option code must be a 32-bit whole number")
		}
		codes = []int{code}
	case RawString:
		for _, part := range strings.Split(raw.str, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tokens = append(tokens, part)
			}
		}
	case RawSelection:
		if raw.sel.Reference != nil {
			return Value{}, reject(col, raw, "a record reference is not an option")
		}
		codes = raw.sel.Codes
		tokens = raw.sel.Labels
	default:
		return Value{}, reject(col, raw, "expected options, got %s", raw.kind)
	}

	members := set.New[int](len(codes) + len(tokens))
	for _, code := range codes {
		if _, ok := col.optionByCode(code); !ok {
			return Value{}, reject(col, raw, "unknown option code %d", code)
		}
		members.Insert(code)
	}
	for _, token := range tokens {
		code, ok := resolveOption(token, col)
		if !ok {
			return Value{}, reject(col, raw, "unknown option %q", token)
		}
		members.Insert(code)
	}

	if members.Size() == 0 {
		return NullValue(col.Type), nil
	}

	out := members.Slice()
	slices.Sort(out)
	return MultiOptionValue(out), nil
}
