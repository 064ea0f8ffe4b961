// Package query executes structured query plans against an annotation store.
//
// A Plan names a result type, binds each result to a variable and narrows
// the results with constraints. Constraints may refer to variables bound by
// enclosing plans, so subqueries run once per parent result:
//
//	plan := &query.Plan{
//	    Name: "word",
//	    Type: query.AnnotationResult,
//	    Constraints: []query.Constraint{query.Key(stam.ByID("tokens"), stam.ByID("type"))},
//	    Subqueries: []*query.Plan{{
//	        Name:        "next",
//	        Type:        query.AnnotationResult,
//	        Constraints: []query.Constraint{query.TextVar("word", relation.Op(relation.Precedes).WithWhitespace())},
//	    }},
//	}
//	rows, err := query.Execute(ctx, store, plan)
//
// Every row maps the variable names of the plan tree to results.
package query

import (
	"fmt"
	"maps"

	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/value"
)

// ResultType is the kind of entity a plan yields.
type ResultType uint8

const (
	AnnotationResult ResultType = iota
	DataResult
	TextResult
	ResourceResult
	DataSetResult
	KeyResult
)

var resultTypeNames = [...]string{
	AnnotationResult: "annotation",
	DataResult:       "data",
	TextResult:       "text",
	ResourceResult:   "resource",
	DataSetResult:    "dataset",
	KeyResult:        "key",
}

func (t ResultType) String() string {
	if int(t) < len(resultTypeNames) {
		return resultTypeNames[t]
	}
	return fmt.Sprintf("ResultType(%d)", t)
}

// ConstraintKind identifies a constraint.
type ConstraintKind uint8

const (
	KeyConstraint ConstraintKind = iota
	DataConstraint
	ResourceConstraint
	DataSetConstraint
	AnnotationVariable
	TextVariable
	DataVariable
	KeyVariable
	TextConstraint
	AnnotationsConstraint
	DataCollectionConstraint
	LimitConstraint
)

// Direction orients an AnnotationVariable constraint on annotation results.
type Direction uint8

const (
	// Targets matches annotations that target the bound annotation.
	Targets Direction = iota
	// TargetedBy matches annotations the bound annotation targets.
	TargetedBy
)

// Constraint narrows the results of a plan. Build one with the
// constructors below.
type Constraint struct {
	kind            ConstraintKind
	set             stam.Ref
	ref             stam.Ref
	op              value.Operator
	hasOp           bool
	variable        string
	direction       Direction
	depth           stam.Depth
	rel             relation.Operator
	fragment        string
	caseInsensitive bool
	annotations     stam.Annotations
	data            stam.Data
	limit           int
}

// Kind reports what the constraint tests.
func (c Constraint) Kind() ConstraintKind { return c.kind }

// Variable returns the variable the constraint refers to, if any.
func (c Constraint) Variable() string { return c.variable }

// Key matches results related to data with the key.
func Key(set, key stam.Ref) Constraint {
	return Constraint{kind: KeyConstraint, set: set, ref: key}
}

// KeyValue matches results related to data with the key whose value satisfies op.
func KeyValue(set, key stam.Ref, op value.Operator) Constraint {
	return Constraint{kind: KeyConstraint, set: set, ref: key, op: op, hasOp: true}
}

// Data matches results related to the data.
func Data(set, data stam.Ref) Constraint {
	return Constraint{kind: DataConstraint, set: set, ref: data}
}

// Resource matches results on the resource.
func Resource(res stam.Ref) Constraint {
	return Constraint{kind: ResourceConstraint, ref: res}
}

// DataSet matches results related to data from the dataset.
func DataSet(set stam.Ref) Constraint {
	return Constraint{kind: DataSetConstraint, set: set}
}

// AnnotationVar relates results to the annotation bound to name.
// Direction and depth only apply to annotation results.
func AnnotationVar(name string, dir Direction, depth stam.Depth) Constraint {
	return Constraint{kind: AnnotationVariable, variable: name, direction: dir, depth: depth}
}

// TextVar matches results whose text stands in relation op to the text of
// the annotation or text selection bound to name.
func TextVar(name string, op relation.Operator) Constraint {
	return Constraint{kind: TextVariable, variable: name, rel: op}
}

// DataVar matches results related to the data bound to name.
func DataVar(name string) Constraint {
	return Constraint{kind: DataVariable, variable: name}
}

// KeyVar matches results related to data with the key bound to name.
func KeyVar(name string) Constraint {
	return Constraint{kind: KeyVariable, variable: name}
}

// KeyValueVar is KeyVar restricted to values satisfying op.
func KeyValueVar(name string, op value.Operator) Constraint {
	return Constraint{kind: KeyVariable, variable: name, op: op, hasOp: true}
}

// Text matches results whose text equals fragment. On resources it
// matches texts containing fragment.
func Text(fragment string, caseInsensitive bool) Constraint {
	return Constraint{kind: TextConstraint, fragment: fragment, caseInsensitive: caseInsensitive}
}

// InAnnotations matches results related to a member of c.
func InAnnotations(c stam.Annotations) Constraint {
	return Constraint{kind: AnnotationsConstraint, annotations: c}
}

// InData matches results related to a member of c.
func InData(c stam.Data) Constraint {
	return Constraint{kind: DataCollectionConstraint, data: c}
}

// Limit caps the results of the plan per binding of its enclosing variables.
func Limit(n int) Constraint {
	return Constraint{kind: LimitConstraint, limit: n}
}

// Plan is one level of a query. An empty Name is replaced by an automatic
// variable name, v1, v2 and so on.
type Plan struct {
	Name        string
	Type        ResultType
	Constraints []Constraint
	Subqueries  []*Plan
}

// Result is one entity bound to a variable. Only the field matching Type is set.
type Result struct {
	Type       ResultType
	Annotation stam.AnnotationHandle
	Data       stam.DataRef
	Text       stam.TextSelection
	Resource   stam.ResourceHandle
	DataSet    stam.DataSetHandle
	Key        stam.KeyRef
}

func (r Result) String() string {
	switch r.Type {
	case AnnotationResult:
		return fmt.Sprintf("annotation %d", r.Annotation)
	case DataResult:
		return "data " + r.Data.String()
	case TextResult:
		return "text " + r.Text.String()
	case ResourceResult:
		return fmt.Sprintf("resource %d", r.Resource)
	case DataSetResult:
		return fmt.Sprintf("dataset %d", r.DataSet)
	case KeyResult:
		return "key " + r.Key.String()
	}
	return r.Type.String()
}

// Row maps variable names to the results bound to them.
type Row map[string]Result

func (r Row) with(name string, res Result) Row {
	out := maps.Clone(r)
	if out == nil {
		out = make(Row, 1)
	}
	out[name] = res
	return out
}
