package query

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam"
)

// Executor runs plans against one store.
type Executor struct {
	store  *stam.AnnotationStore
	logger *zap.SugaredLogger
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Logger receives debug output. Defaults to the "query" component logger.
	Logger *zap.SugaredLogger
}

// NewExecutor creates an executor over store.
func NewExecutor(store *stam.AnnotationStore, opts ExecutorOptions) *Executor {
	l := opts.Logger
	if l == nil {
		l = logger.ComponentLogger("query")
	}
	return &Executor{store: store, logger: l}
}

// Execute runs p against store with default options.
func Execute(ctx context.Context, store *stam.AnnotationStore, p *Plan) ([]Row, error) {
	return NewExecutor(store, ExecutorOptions{}).Execute(ctx, p)
}

// step is a plan after naming and constant resolution.
type step struct {
	name        string
	typ         ResultType
	constraints []Constraint
	subs        []*step
}

// compiler names plans and binds constants. Automatic names skip every
// name that appears in the plan tree.
type compiler struct {
	store  *stam.AnnotationStore
	taken  map[string]bool
	next   int
	consts Row
	plans  []string
}

func (c *compiler) autoName() string {
	for {
		c.next++
		name := fmt.Sprintf("v%d", c.next)
		if !c.taken[name] {
			c.taken[name] = true
			return name
		}
	}
}

func collectNames(p *Plan, taken map[string]bool) error {
	if p == nil {
		return errors.NewInvalidRequestError("nil plan")
	}
	if p.Name != "" {
		if taken[p.Name] {
			return errors.NewInvalidRequestError("variable %q bound twice", p.Name)
		}
		taken[p.Name] = true
	}
	for _, sub := range p.Subqueries {
		if err := collectNames(sub, taken); err != nil {
			return err
		}
	}
	return nil
}

// compile walks the plan tree in pre-order. scope holds the types of the
// variables visible to p.
func (c *compiler) compile(p *Plan, scope map[string]ResultType) (*step, error) {
	st := &step{name: p.Name, typ: p.Type}
	if int(p.Type) >= len(resultTypeNames) {
		return nil, errors.NewInvalidRequestError("unknown result type %d", p.Type)
	}
	if st.name == "" {
		st.name = c.autoName()
	}
	c.plans = append(c.plans, st.name)

	local := maps.Clone(scope)
	for _, con := range p.Constraints {
		bound, err := c.bind(con, local)
		if err != nil {
			return nil, errors.Wrapf(err, "plan %s", st.name)
		}
		if err := checkConstraint(st.typ, bound, local); err != nil {
			return nil, errors.Wrapf(err, "plan %s", st.name)
		}
		st.constraints = append(st.constraints, bound)
	}

	local[st.name] = st.typ
	for _, sub := range p.Subqueries {
		child, err := c.compile(sub, local)
		if err != nil {
			return nil, err
		}
		st.subs = append(st.subs, child)
	}
	return st, nil
}

// bind resolves the entity a constraint names. Keys and data become
// automatic variables; resources and datasets are pinned to their handles.
func (c *compiler) bind(con Constraint, local map[string]ResultType) (Constraint, error) {
	switch con.kind {
	case KeyConstraint:
		k, err := c.store.Key(con.set, con.ref)
		if err != nil {
			return con, err
		}
		name := c.autoName()
		c.consts[name] = Result{Type: KeyResult, Key: k.Ref()}
		local[name] = KeyResult
		return Constraint{kind: KeyVariable, variable: name, op: con.op, hasOp: con.hasOp}, nil
	case DataConstraint:
		d, err := c.store.AnnotationData(con.set, con.ref)
		if err != nil {
			return con, err
		}
		name := c.autoName()
		c.consts[name] = Result{Type: DataResult, Data: d.Ref()}
		local[name] = DataResult
		return Constraint{kind: DataVariable, variable: name}, nil
	case ResourceConstraint:
		r, err := c.store.Resource(con.ref)
		if err != nil {
			return con, err
		}
		con.ref = stam.ByHandle(r.Handle())
	case DataSetConstraint:
		d, err := c.store.DataSet(con.set)
		if err != nil {
			return con, err
		}
		con.set = stam.ByHandle(d.Handle())
	}
	return con, nil
}

func checkConstraint(typ ResultType, con Constraint, scope map[string]ResultType) error {
	switch con.kind {
	case LimitConstraint:
		if con.limit < 0 {
			return errors.NewInvalidRequestError("negative limit %d", con.limit)
		}
	case TextConstraint:
		if typ == DataResult || typ == DataSetResult || typ == KeyResult {
			return errors.NewInvalidRequestError("text constraint on %s results", typ)
		}
	case AnnotationVariable, TextVariable, DataVariable, KeyVariable:
		bound, ok := scope[con.variable]
		if !ok {
			return errors.NewInvalidRequestError("unknown variable %q", con.variable)
		}
		want := map[ConstraintKind]ResultType{
			AnnotationVariable: AnnotationResult,
			DataVariable:       DataResult,
			KeyVariable:        KeyResult,
		}
		if con.kind == TextVariable {
			if bound != AnnotationResult && bound != TextResult {
				return errors.NewInvalidRequestError("variable %q is a %s, text relations need annotation or text", con.variable, bound)
			}
		} else if bound != want[con.kind] {
			return errors.NewInvalidRequestError("variable %q is a %s, want %s", con.variable, bound, want[con.kind])
		}
	}
	return nil
}

// Execute runs p and returns one row per complete binding of the plan tree.
// Subqueries act as a join: a result whose subqueries yield nothing is dropped.
func (e *Executor) Execute(ctx context.Context, p *Plan) ([]Row, error) {
	startTime := time.Now()

	// Step 1: name variables and resolve constants
	taken := make(map[string]bool)
	if err := collectNames(p, taken); err != nil {
		return nil, err
	}
	c := &compiler{store: e.store, taken: taken, consts: Row{}}
	root, err := c.compile(p, map[string]ResultType{})
	if err != nil {
		return nil, err
	}
	e.logger.Debugw("executing query",
		logger.FieldQuery, root.name,
		logger.FieldCount, len(c.plans),
	)

	// Step 2: evaluate depth first
	var rows []Row
	err = e.run(ctx, root, c.consts, func(bound Row) error {
		row := make(Row, len(c.plans))
		for _, name := range c.plans {
			if res, ok := bound[name]; ok {
				row[name] = res
			}
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debugw("query complete",
		logger.FieldQuery, root.name,
		logger.FieldCount, len(rows),
		logger.FieldDurationMS, time.Since(startTime).Milliseconds(),
	)
	return rows, nil
}

func (e *Executor) run(ctx context.Context, st *step, bound Row, emit func(Row) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	results, err := e.resolve(st, bound)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.join(ctx, st.subs, bound.with(st.name, res), emit); err != nil {
			return err
		}
	}
	return nil
}

// join chains sibling subqueries: each one runs once per binding of the
// ones before it.
func (e *Executor) join(ctx context.Context, subs []*step, bound Row, emit func(Row) error) error {
	if len(subs) == 0 {
		return emit(bound)
	}
	return e.run(ctx, subs[0], bound, func(row Row) error {
		return e.join(ctx, subs[1:], row, emit)
	})
}

func (e *Executor) resolve(st *step, bound Row) ([]Result, error) {
	limit := 0
	for _, con := range st.constraints {
		if con.kind == LimitConstraint {
			limit = con.limit
		}
	}
	var (
		out []Result
		err error
	)
	switch st.typ {
	case AnnotationResult:
		out, err = e.annotations(st.constraints, bound)
	case DataResult:
		out, err = e.data(st.constraints, bound)
	case TextResult:
		out, err = e.text(st.constraints, bound)
	case ResourceResult:
		out, err = e.resources(st.constraints, bound)
	case DataSetResult:
		out, err = e.datasets(st.constraints, bound)
	case KeyResult:
		out, err = e.keys(st.constraints, bound)
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// filter translates a variable or collection constraint into a store filter.
// AnnotationVariable depends on the result type and is handled by callers.
func (e *Executor) filter(con Constraint, bound Row) (stam.Filter, bool) {
	switch con.kind {
	case KeyVariable:
		k := bound[con.variable].Key
		if con.hasOp {
			return stam.WithKeyValue(stam.ByHandle(k.Set), stam.ByHandle(k.Key), con.op), true
		}
		return stam.WithKey(stam.ByHandle(k.Set), stam.ByHandle(k.Key)), true
	case DataVariable:
		d := bound[con.variable].Data
		return stam.WithData(stam.ByHandle(d.Set), stam.ByHandle(d.Data)), true
	case ResourceConstraint:
		return stam.WithResource(con.ref), true
	case DataSetConstraint:
		return stam.WithDataSet(con.set), true
	case TextVariable:
		return stam.Related(con.rel, e.textOf(bound[con.variable])), true
	case AnnotationsConstraint:
		return stam.InAnnotations(con.annotations), true
	case DataCollectionConstraint:
		return stam.InData(con.data), true
	}
	return stam.Filter{}, false
}

func (e *Executor) textOf(res Result) stam.TextSelections {
	if res.Type == TextResult {
		return e.store.Selections(res.Text)
	}
	return e.store.TextSelectionsOf(stam.ByHandle(res.Annotation))
}

func (e *Executor) annotations(cons []Constraint, bound Row) ([]Result, error) {
	var filters []stam.Filter
	var texts []Constraint
	for _, con := range cons {
		switch con.kind {
		case AnnotationVariable:
			a := stam.ByHandle(bound[con.variable].Annotation)
			if con.direction == Targets {
				filters = append(filters, stam.InAnnotations(e.store.AnnotationsTargeting(a, con.depth)))
			} else {
				filters = append(filters, stam.InAnnotations(e.store.AnnotationTargets(a, con.depth)))
			}
		case TextConstraint:
			texts = append(texts, con)
		default:
			if f, ok := e.filter(con, bound); ok {
				filters = append(filters, f)
			}
		}
	}
	hs, err := e.store.Annotations().Filter(filters...).Items()
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hs))
	for _, h := range hs {
		if len(texts) > 0 {
			strs, err := e.store.AnnotationText(stam.ByHandle(h))
			if errors.IsNotFoundError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !matchesAll(strs, texts) {
				continue
			}
		}
		out = append(out, Result{Type: AnnotationResult, Annotation: h})
	}
	return out, nil
}

func (e *Executor) data(cons []Constraint, bound Row) ([]Result, error) {
	var filters []stam.Filter
	for _, con := range cons {
		if con.kind == AnnotationVariable {
			filters = append(filters, stam.InData(e.store.DataOf(stam.ByHandle(bound[con.variable].Annotation))))
			continue
		}
		if f, ok := e.filter(con, bound); ok {
			filters = append(filters, f)
		}
	}
	refs, err := e.store.AllData().Filter(filters...).Items()
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Result{Type: DataResult, Data: ref})
	}
	return out, nil
}

func (e *Executor) text(cons []Constraint, bound Row) ([]Result, error) {
	base := e.store.TextSelectionsOfAnnotations(e.store.Annotations())
	var filters []stam.Filter
	var texts []Constraint
	for _, con := range cons {
		switch con.kind {
		case ResourceConstraint:
			base = e.store.TextSelectionsInResource(con.ref)
		case AnnotationVariable:
			filters = append(filters, stam.InTextSelections(e.store.TextSelectionsOf(stam.ByHandle(bound[con.variable].Annotation))))
		case TextConstraint:
			texts = append(texts, con)
		default:
			if f, ok := e.filter(con, bound); ok {
				filters = append(filters, f)
			}
		}
	}
	sels, err := base.Filter(filters...).Items()
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(sels))
	for _, ts := range sels {
		if len(texts) > 0 {
			r, err := e.store.Resource(stam.ByHandle(ts.Resource))
			if err != nil {
				return nil, err
			}
			str, err := r.TextOf(ts)
			if err != nil {
				return nil, err
			}
			if !matchesAll([]string{str}, texts) {
				continue
			}
		}
		out = append(out, Result{Type: TextResult, Text: ts})
	}
	return out, nil
}

// probe tests a resource, dataset or key candidate. direct handles the
// constraints that test the candidate itself and reports whether it
// consumed con; the rest must hold for some annotation of annotations.
func (e *Executor) probe(cons []Constraint, bound Row, annotations stam.Annotations, direct func(Constraint) (bool, bool, error)) (bool, error) {
	var filters []stam.Filter
	for _, con := range cons {
		handled, pass, err := direct(con)
		if err != nil {
			return false, err
		}
		if handled {
			if !pass {
				return false, nil
			}
			continue
		}
		if con.kind == AnnotationVariable {
			filters = append(filters, stam.WithAnnotation(stam.ByHandle(bound[con.variable].Annotation)))
			continue
		}
		if f, ok := e.filter(con, bound); ok {
			filters = append(filters, f)
		}
	}
	if len(filters) == 0 {
		return true, nil
	}
	return annotations.Filter(filters...).Test()
}

func (e *Executor) resources(cons []Constraint, bound Row) ([]Result, error) {
	var out []Result
	for _, r := range e.store.Resources() {
		direct := func(con Constraint) (bool, bool, error) {
			switch con.kind {
			case ResourceConstraint:
				got, err := e.store.Resource(con.ref)
				if err != nil {
					return true, false, err
				}
				return true, got.Handle() == r.Handle(), nil
			case TextConstraint:
				return true, containsText(r.Text(), con), nil
			case LimitConstraint:
				return true, true, nil
			}
			return false, false, nil
		}
		pass, err := e.probe(cons, bound, e.store.AnnotationsOnResource(stam.ByHandle(r.Handle())), direct)
		if err != nil {
			return nil, err
		}
		if pass {
			out = append(out, Result{Type: ResourceResult, Resource: r.Handle()})
		}
	}
	return out, nil
}

func (e *Executor) datasets(cons []Constraint, bound Row) ([]Result, error) {
	var out []Result
	for _, d := range e.store.DataSets() {
		h := d.Handle()
		direct := func(con Constraint) (bool, bool, error) {
			switch con.kind {
			case DataSetConstraint:
				got, err := e.store.DataSet(con.set)
				if err != nil {
					return true, false, err
				}
				return true, got.Handle() == h, nil
			case KeyVariable:
				k := bound[con.variable].Key
				if k.Set != h {
					return true, false, nil
				}
				if !con.hasOp {
					return true, true, nil
				}
				ok, err := e.store.TestData(stam.ByHandle(k.Set), stam.ByHandle(k.Key), con.op)
				return true, ok, err
			case DataVariable:
				return true, bound[con.variable].Data.Set == h, nil
			case LimitConstraint:
				return true, true, nil
			}
			return false, false, nil
		}
		pass, err := e.probe(cons, bound, e.store.AnnotationsByDataSet(stam.ByHandle(h)), direct)
		if err != nil {
			return nil, err
		}
		if pass {
			out = append(out, Result{Type: DataSetResult, DataSet: h})
		}
	}
	return out, nil
}

func (e *Executor) keys(cons []Constraint, bound Row) ([]Result, error) {
	var out []Result
	for _, d := range e.store.DataSets() {
		keys, err := e.store.Keys(stam.ByHandle(d.Handle()))
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			ref := k.Ref()
			direct := func(con Constraint) (bool, bool, error) {
				switch con.kind {
				case DataSetConstraint:
					got, err := e.store.DataSet(con.set)
					if err != nil {
						return true, false, err
					}
					return true, got.Handle() == ref.Set, nil
				case KeyVariable:
					if bound[con.variable].Key != ref {
						return true, false, nil
					}
					if !con.hasOp {
						return true, true, nil
					}
					ok, err := e.store.TestData(stam.ByHandle(ref.Set), stam.ByHandle(ref.Key), con.op)
					return true, ok, err
				case DataVariable:
					dr := bound[con.variable].Data
					datum, err := e.store.AnnotationData(stam.ByHandle(dr.Set), stam.ByHandle(dr.Data))
					if err != nil {
						return true, false, err
					}
					return true, datum.Key() == ref, nil
				case LimitConstraint:
					return true, true, nil
				}
				return false, false, nil
			}
			annotations := e.store.AnnotationsByKey(stam.ByHandle(ref.Set), stam.ByHandle(ref.Key))
			pass, err := e.probe(cons, bound, annotations, direct)
			if err != nil {
				return nil, err
			}
			if pass {
				out = append(out, Result{Type: KeyResult, Key: ref})
			}
		}
	}
	return out, nil
}

// matchesAll reports whether every text constraint equals one of strs.
func matchesAll(strs []string, texts []Constraint) bool {
	for _, con := range texts {
		found := false
		for _, s := range strs {
			if con.caseInsensitive && strings.EqualFold(s, con.fragment) || s == con.fragment {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsText(s string, con Constraint) bool {
	if con.caseInsensitive {
		return strings.Contains(strings.ToLower(s), strings.ToLower(con.fragment))
	}
	return strings.Contains(s, con.fragment)
}
