package value

import (
	"strings"

	"github.com/teranos/stam/errors"
)

// OpKind discriminates the variants of an Operator.
type OpKind uint8

const (
	OpAny OpKind = iota
	OpNull
	OpEquals
	OpTrue
	OpFalse
	OpGreater
	OpGreaterEq
	OpLess
	OpLessEq
	OpNot
	OpAnd
	OpOr
)

// Operator is a predicate over a DataValue. Build it with the constructors
// below; Test is the single dispatcher that evaluates every variant.
type Operator struct {
	kind    OpKind
	operand DataValue
	subs    []Operator
}

func Any() Operator { return Operator{kind: OpAny} }
func IsNull() Operator { return Operator{kind: OpNull} }
func True() Operator { return Operator{kind: OpTrue} }
func False() Operator { return Operator{kind: OpFalse} }

// Equals matches values equal in kind and content.
func Equals(v DataValue) Operator { return Operator{kind: OpEquals, operand: v} }

func EqualsString(s string) Operator { return Equals(String(s)) }
func EqualsInt(i int64) Operator { return Equals(Int(i)) }
func EqualsFloat(f float64) Operator { return Equals(Float(f)) }

// GreaterThan and friends compare numerically; ints and floats mix.
func GreaterThan(v DataValue) Operator { return Operator{kind: OpGreater, operand: v} }
func GreaterThanOrEqual(v DataValue) Operator { return Operator{kind: OpGreaterEq, operand: v} }
func LessThan(v DataValue) Operator { return Operator{kind: OpLess, operand: v} }
func LessThanOrEqual(v DataValue) Operator { return Operator{kind: OpLessEq, operand: v} }

func Not(op Operator) Operator { return Operator{kind: OpNot, subs: []Operator{op}} }

func And(ops ...Operator) Operator {
	return Operator{kind: OpAnd, subs: append([]Operator(nil), ops...)}
}

func Or(ops ...Operator) Operator {
	return Operator{kind: OpOr, subs: append([]Operator(nil), ops...)}
}

// In matches any of the given values.
func In(vs ...DataValue) Operator {
	ops := make([]Operator, len(vs))
	for i, v := range vs {
		ops[i] = Equals(v)
	}
	return Or(ops...)
}

// InRange matches numbers in the inclusive range [lo, hi].
func InRange(lo, hi DataValue) Operator {
	return And(GreaterThanOrEqual(lo), LessThanOrEqual(hi))
}

func (o Operator) Kind() OpKind { return o.kind }

// IsAny reports whether the operator accepts every value.
func (o Operator) IsAny() bool { return o.kind == OpAny }

// Validate checks operands eagerly, so malformed predicates fail at construction sites.
func (o Operator) Validate() error {
	switch o.kind {
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		if !o.operand.IsNumeric() {
			return errors.NewValueTypeMismatchError("%s needs a numeric operand, got %s", o.symbol(), o.operand.Kind())
		}
	case OpNot, OpAnd, OpOr:
		if len(o.subs) == 0 {
			return errors.NewInvalidRequestError("%s without operands", o.symbol())
		}
		for _, sub := range o.subs {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Test evaluates the operator against v. Ordering comparisons against a
// non-numeric value fail with ErrValueTypeMismatch.
func (o Operator) Test(v DataValue) (bool, error) {
	switch o.kind {
	case OpAny:
		return true, nil
	case OpNull:
		return v.IsNull(), nil
	case OpEquals:
		return v.Equal(o.operand), nil
	case OpTrue:
		b, ok := v.AsBool()
		return ok && b, nil
	case OpFalse:
		b, ok := v.AsBool()
		return ok && !b, nil
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return o.compare(v)
	case OpNot:
		ok, err := o.subs[0].Test(v)
		return !ok, err
	case OpAnd:
		for _, sub := range o.subs {
			ok, err := sub.Test(v)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OpOr:
		for _, sub := range o.subs {
			ok, err := sub.Test(v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, errors.AssertionFailedf("unhandled operator kind %d", o.kind)
}

func (o Operator) compare(v DataValue) (bool, error) {
	if !o.operand.IsNumeric() {
		return false, errors.NewValueTypeMismatchError("%s needs a numeric operand, got %s", o.symbol(), o.operand.Kind())
	}
	if !v.IsNumeric() {
		return false, errors.NewValueTypeMismatchError("cannot compare %s value %q with %s", v.Kind(), v.String(), o.symbol())
	}

	var cmp int
	if v.kind == IntKind && o.operand.kind == IntKind {
		cmp = compareInts(v.i, o.operand.i)
	} else {
		a, _ := v.AsFloat()
		b, _ := o.operand.AsFloat()
		cmp = compareFloats(a, b)
	}

	switch o.kind {
	case OpGreater:
		return cmp > 0, nil
	case OpGreaterEq:
		return cmp >= 0, nil
	case OpLess:
		return cmp < 0, nil
	default:
		return cmp <= 0, nil
	}
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (o Operator) symbol() string {
	switch o.kind {
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	case OpNot:
		return "not"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	return "="
}

func (o Operator) String() string {
	switch o.kind {
	case OpAny:
		return "any"
	case OpNull:
		return "null"
	case OpTrue:
		return "true"
	case OpFalse:
		return "false"
	case OpEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return o.symbol() + " " + o.operand.String()
	case OpNot:
		return "not (" + o.subs[0].String() + ")"
	}
	parts := make([]string, len(o.subs))
	for i, sub := range o.subs {
		parts[i] = sub.String()
	}
	return "(" + strings.Join(parts, " "+o.symbol()+" ") + ")"
}
