package value

import (
	"github.com/teranos/stam/errors"
)

// Keywords accepted by FromKeyword. Each maps onto an Operator composition.
const (
	KeywordValue        = "value"
	KeywordValueNot     = "value_not"
	KeywordGreater      = "value_greater"
	KeywordNotGreater   = "value_not_greater"
	KeywordGreaterEq    = "value_greatereq"
	KeywordNotGreaterEq = "value_not_greatereq"
	KeywordLess         = "value_less"
	KeywordNotLess      = "value_not_less"
	KeywordLessEq       = "value_lesseq"
	KeywordNotLessEq    = "value_not_lesseq"
	KeywordIn           = "value_in"
	KeywordNotIn        = "value_not_in"
	KeywordInRange      = "value_in_range"
	KeywordNotInRange   = "value_not_in_range"
)

// FromKeyword builds an operator from a filter keyword and its argument.
// value_in takes a slice; the range keywords take a two-element slice of numbers.
func FromKeyword(keyword string, arg any) (Operator, error) {
	switch keyword {
	case KeywordValue:
		return equalityFrom(arg)
	case KeywordValueNot:
		op, err := equalityFrom(arg)
		return Not(op), err
	case KeywordGreater, KeywordNotGreater, KeywordGreaterEq, KeywordNotGreaterEq,
		KeywordLess, KeywordNotLess, KeywordLessEq, KeywordNotLessEq:
		return comparisonFrom(keyword, arg)
	case KeywordIn, KeywordNotIn:
		items, err := listArg(keyword, arg)
		if err != nil {
			return Operator{}, err
		}
		ops := make([]Operator, 0, len(items))
		for _, item := range items {
			op, err := equalityFrom(item.Interface())
			if err != nil {
				return Operator{}, err
			}
			ops = append(ops, op)
		}
		if keyword == KeywordNotIn {
			return Not(Or(ops...)), nil
		}
		return Or(ops...), nil
	case KeywordInRange, KeywordNotInRange:
		items, err := listArg(keyword, arg)
		if err != nil {
			return Operator{}, err
		}
		if len(items) != 2 || !items[0].IsNumeric() || !items[1].IsNumeric() {
			return Operator{}, errors.NewValueTypeMismatchError("%s must be a pair of numbers (min, max)", keyword)
		}
		op := InRange(items[0], items[1])
		if keyword == KeywordNotInRange {
			return Not(op), nil
		}
		return op, nil
	}
	return Operator{}, errors.NewInvalidRequestError("unknown value keyword %q", keyword)
}

// equalityFrom maps booleans and nil onto their dedicated operators.
func equalityFrom(arg any) (Operator, error) {
	switch x := arg.(type) {
	case nil:
		return IsNull(), nil
	case bool:
		if x {
			return True(), nil
		}
		return False(), nil
	}
	v, err := Of(arg)
	if err != nil {
		return Operator{}, err
	}
	return Equals(v), nil
}

func comparisonFrom(keyword string, arg any) (Operator, error) {
	v, err := Of(arg)
	if err != nil {
		return Operator{}, err
	}
	if !v.IsNumeric() {
		return Operator{}, errors.NewValueTypeMismatchError("%s needs a number, got %s", keyword, v.Kind())
	}
	switch keyword {
	case KeywordGreater:
		return GreaterThan(v), nil
	case KeywordNotGreater:
		return Not(GreaterThan(v)), nil
	case KeywordGreaterEq:
		return GreaterThanOrEqual(v), nil
	case KeywordNotGreaterEq:
		return Not(GreaterThanOrEqual(v)), nil
	case KeywordLess:
		return LessThan(v), nil
	case KeywordNotLess:
		return Not(LessThan(v)), nil
	case KeywordLessEq:
		return LessThanOrEqual(v), nil
	default:
		return Not(LessThanOrEqual(v)), nil
	}
}

func listArg(keyword string, arg any) ([]DataValue, error) {
	v, err := Of(arg)
	if err != nil {
		return nil, err
	}
	items, ok := v.AsList()
	if !ok {
		return nil, errors.NewValueTypeMismatchError("%s needs a list, got %s", keyword, v.Kind())
	}
	return items, nil
}
