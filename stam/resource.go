package stam

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam/text"
)

// TextSelection is a span of a resource's text. Selections produced by
// the store carry the handle under which the resource registered them.
type TextSelection struct {
	Resource ResourceHandle
	Begin    int
	End      int

	handle TextSelectionHandle
	bound  bool
}

// Span returns the codepoint span of the selection.
func (ts TextSelection) Span() text.Span { return text.Span{Begin: ts.Begin, End: ts.End} }

// Handle returns the registered handle, if the selection is known to its resource.
func (ts TextSelection) Handle() (TextSelectionHandle, bool) { return ts.handle, ts.bound }

func (ts TextSelection) Len() int { return ts.End - ts.Begin }

// SameAs compares resource and span, ignoring registration.
func (ts TextSelection) SameAs(other TextSelection) bool {
	return ts.Resource == other.Resource && ts.Begin == other.Begin && ts.End == other.End
}

func (ts TextSelection) String() string {
	return fmt.Sprintf("%d%s", ts.Resource, ts.Span())
}

func (ts TextSelection) key() selectionKey {
	return selectionKey{resource: ts.Resource, begin: ts.Begin, end: ts.End}
}

type selectionKey struct {
	resource ResourceHandle
	begin    int
	end      int
}

func compareSelections(a, b TextSelection) int {
	switch {
	case a.Resource != b.Resource:
		return int(a.Resource) - int(b.Resource)
	case a.Begin != b.Begin:
		return a.Begin - b.Begin
	default:
		return a.End - b.End
	}
}

// TextResource holds an immutable text and the selections registered on it.
// The text-level methods are safe to call without the store; everything
// touching selections goes through the store.
type TextResource struct {
	handle   ResourceHandle
	id       string
	filename string
	text     *text.Text

	selections []text.Span
	alive      []bool
	spans      map[text.Span]TextSelectionHandle
	positions  *positionIndex
}

func newTextResource(h ResourceHandle, id, filename string, t *text.Text, positional bool) *TextResource {
	r := &TextResource{
		handle:   h,
		id:       id,
		filename: filename,
		text:     t,
		spans:    make(map[text.Span]TextSelectionHandle),
	}
	if positional {
		r.positions = newPositionIndex()
	}
	return r
}

func (r *TextResource) Handle() ResourceHandle { return r.handle }
func (r *TextResource) ID() string             { return r.id }

// Filename is the optional stand-off location the text came from.
func (r *TextResource) Filename() string { return r.filename }

// Text returns the full text.
func (r *TextResource) Text() string { return r.text.String() }

// Len returns the text length in codepoints.
func (r *TextResource) Len() int { return r.text.Len() }

// Buffer exposes the indexed text buffer.
func (r *TextResource) Buffer() *text.Text { return r.text }

// TextSelection resolves an offset against the whole text. The result is
// not registered with the resource until an annotation targets it.
func (r *TextResource) TextSelection(o text.Offset) (TextSelection, error) {
	span, err := r.text.Resolve(o)
	if err != nil {
		return TextSelection{}, err
	}
	return r.selection(span), nil
}

func (r *TextResource) selection(span text.Span) TextSelection {
	return TextSelection{Resource: r.handle, Begin: span.Begin, End: span.End}
}

func (r *TextResource) wrapSpans(spans []text.Span) []TextSelection {
	out := make([]TextSelection, len(spans))
	for i, s := range spans {
		out[i] = r.selection(s)
	}
	return out
}

// TextOf returns the text of a selection on this resource.
func (r *TextResource) TextOf(ts TextSelection) (string, error) {
	if ts.Resource != r.handle {
		return "", errors.NewInvalidRequestError("selection belongs to resource %d, not %d", ts.Resource, r.handle)
	}
	return r.text.Slice(ts.Span())
}

// FindText returns every non-overlapping occurrence of fragment.
func (r *TextResource) FindText(fragment string, opts text.FindOptions) ([]TextSelection, error) {
	spans, err := r.text.Find(fragment, r.text.Whole(), opts)
	if err != nil {
		return nil, err
	}
	return r.wrapSpans(spans), nil
}

// FindTextSequence matches fragments in order, skipping characters for which skip holds.
func (r *TextResource) FindTextSequence(fragments []string, skip func(rune) bool, caseInsensitive bool) ([]TextSelection, error) {
	if skip == nil {
		skip = text.DefaultSkip
	}
	spans, err := r.text.FindSequence(fragments, r.text.Whole(), skip, caseInsensitive)
	if err != nil {
		return nil, err
	}
	return r.wrapSpans(spans), nil
}

// MultiMatch is one hit of FindTextMulti.
type MultiMatch struct {
	Pattern   int
	Selection TextSelection
}

// FindTextMulti searches for all patterns in a single pass.
func (r *TextResource) FindTextMulti(patterns []string, caseInsensitive bool) ([]MultiMatch, error) {
	matches, err := r.text.FindMulti(patterns, r.text.Whole(), caseInsensitive)
	if err != nil {
		return nil, err
	}
	out := make([]MultiMatch, len(matches))
	for i, m := range matches {
		out[i] = MultiMatch{Pattern: m.Pattern, Selection: r.selection(m.Span)}
	}
	return out, nil
}

// RegexResult is one hit of FindRegex. Groups holds one selection per
// participating capture group, or the whole match when there are none.
type RegexResult struct {
	Expression int
	Selections []TextSelection
	Groups     []int
}

// FindRegex runs the expressions over the whole text.
func (r *TextResource) FindRegex(exprs []*regexp.Regexp, allowOverlap bool, limit int) ([]RegexResult, error) {
	matches, err := r.text.FindRegex(exprs, r.text.Whole(), allowOverlap, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RegexResult, len(matches))
	for i, m := range matches {
		out[i] = RegexResult{Expression: m.Expression, Selections: r.wrapSpans(m.Spans), Groups: m.Groups}
	}
	return out, nil
}

// Split cuts the text at every occurrence of delimiter. Empty parts are kept.
func (r *TextResource) Split(delimiter string) ([]TextSelection, error) {
	spans, err := r.text.Split(delimiter, r.text.Whole())
	if err != nil {
		return nil, err
	}
	return r.wrapSpans(spans), nil
}

// Strip trims chars, or whitespace when chars is empty, from both ends of a selection.
func (r *TextResource) Strip(ts TextSelection, chars string) (TextSelection, error) {
	span, err := r.text.Strip(ts.Span(), chars)
	if err != nil {
		return TextSelection{}, err
	}
	return r.selection(span), nil
}

// RelativeOffset expresses inner relative to outer.
func (r *TextResource) RelativeOffset(outer, inner TextSelection) (text.Offset, error) {
	if outer.Resource != inner.Resource {
		return text.Offset{}, errors.NewNotEmbeddedError("selections belong to different resources")
	}
	return outer.Span().Relative(inner.Span())
}

// AbsoluteSelection resolves an offset relative to outer.
func (r *TextResource) AbsoluteSelection(outer TextSelection, rel text.Offset) (TextSelection, error) {
	span, err := outer.Span().Absolute(rel)
	if err != nil {
		return TextSelection{}, err
	}
	return r.selection(span), nil
}

// lookup returns the registered handle of span, if any.
func (r *TextResource) lookup(span text.Span) (TextSelectionHandle, bool) {
	h, ok := r.spans[span]
	return h, ok
}

// register returns the handle of span, registering it when new.
func (r *TextResource) register(span text.Span) TextSelectionHandle {
	if h, ok := r.spans[span]; ok {
		return h
	}
	h := TextSelectionHandle(len(r.selections))
	r.selections = append(r.selections, span)
	r.alive = append(r.alive, true)
	r.spans[span] = h
	if r.positions != nil {
		r.positions.insert(span, h)
	}
	return h
}

// unregister forgets a selection nothing refers to anymore.
func (r *TextResource) unregister(h TextSelectionHandle) bool {
	if int(h) >= len(r.selections) || !r.alive[h] {
		return false
	}
	span := r.selections[h]
	r.alive[h] = false
	delete(r.spans, span)
	if r.positions != nil {
		return r.positions.remove(span, h)
	}
	return true
}

// bound returns the registered selection for handle h.
func (r *TextResource) bound(h TextSelectionHandle) (TextSelection, bool) {
	if int(h) >= len(r.selections) || !r.alive[h] {
		return TextSelection{}, false
	}
	span := r.selections[h]
	return TextSelection{Resource: r.handle, Begin: span.Begin, End: span.End, handle: h, bound: true}, true
}

// bind attaches the registered handle to ts when one exists.
func (r *TextResource) bind(ts TextSelection) TextSelection {
	if h, ok := r.spans[ts.Span()]; ok {
		ts.handle, ts.bound = h, true
	}
	return ts
}

func (r *TextResource) liveSelections() []TextSelection {
	out := make([]TextSelection, 0, len(r.spans))
	for h := range r.selections {
		if ts, ok := r.bound(TextSelectionHandle(h)); ok {
			out = append(out, ts)
		}
	}
	return out
}

func (r *TextResource) shrink() {
	r.selections = clipSlice(r.selections)
	r.alive = clipSlice(r.alive)
	if r.positions != nil {
		r.positions.shrink()
	}
}

// ResourceBuilder describes a resource to add.
type ResourceBuilder struct {
	ID       string
	Text     string
	Filename string
}

// AddResource adds a text resource.
func (s *AnnotationStore) AddResource(b ResourceBuilder) (ResourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addResource(b)
}

func (s *AnnotationStore) addResource(b ResourceBuilder) (ResourceHandle, error) {
	if err := s.checkResource(b); err != nil {
		return 0, err
	}
	content := b.Text
	if s.config.NormalizeNFC {
		content = text.NormalizeNFC(content)
	}
	h := ResourceHandle(len(s.resources))
	r := newTextResource(h, b.ID, b.Filename, text.New(content, s.config.MilestoneInterval), s.config.TextRelationMap)
	s.resources = append(s.resources, r)
	if b.ID != "" {
		s.resourceIDs[b.ID] = h
	}
	s.debugw("resource added", logger.FieldResource, b.ID, logger.FieldHandle, h, logger.FieldCount, r.Len())
	return h, nil
}

func (s *AnnotationStore) checkResource(b ResourceBuilder) error {
	if !utf8.ValidString(b.Text) {
		return errors.NewInvalidRequestError("resource %q text is not valid UTF-8", b.ID)
	}
	if b.ID != "" {
		if _, exists := s.resourceIDs[b.ID]; exists {
			return errors.NewDuplicateIDError("resource", b.ID)
		}
	}
	return nil
}

// Resource looks up a resource.
func (s *AnnotationStore) Resource(ref Ref) (*TextResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resource(ref)
}

func (s *AnnotationStore) resource(ref Ref) (*TextResource, error) {
	h, ok := s.resourceHandle(ref)
	if !ok {
		return nil, errors.NewNotFoundError("resource %s", ref)
	}
	return s.resources[h], nil
}

func (s *AnnotationStore) resourceHandle(ref Ref) (ResourceHandle, bool) {
	var h ResourceHandle
	switch {
	case ref.byHandle:
		h = ResourceHandle(ref.handle)
	case ref.id == "":
		return 0, false
	default:
		found, ok := s.resourceIDs[ref.id]
		if !ok {
			n, temp := parseTempID(prefixResource, ref.id)
			if !temp {
				return 0, false
			}
			found = ResourceHandle(n)
		}
		h = found
	}
	if int(h) >= len(s.resources) || s.resources[h] == nil {
		return 0, false
	}
	return h, true
}

// liveResource returns the resource for a handle held by a selector.
func (s *AnnotationStore) liveResource(h ResourceHandle) (*TextResource, bool) {
	if int(h) >= len(s.resources) || s.resources[h] == nil {
		return nil, false
	}
	return s.resources[h], true
}

// Resources returns every live resource in handle order.
func (s *AnnotationStore) Resources() []*TextResource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TextResource, 0, len(s.resources))
	for _, r := range s.resources {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// PublicID returns the ID of a resource, or its temporary ID when it has none.
func (r *TextResource) PublicID() string {
	if r.id != "" {
		return r.id
	}
	return tempID(prefixResource, uint32(r.handle))
}
