package stam

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam/text"
	"github.com/teranos/stam/stam/value"
)

// Transposition vocabulary.
const (
	TranspositionSet     = "https://w3id.org/stam/extensions/stam-transpose/"
	TranspositionKey     = "Transposition"
	TranspositionSideKey = "TranspositionSide"
)

// Segment is one aligned stretch, as codepoint spans relative to the two aligned texts.
type Segment struct {
	Source text.Span
	Target text.Span
}

// Alignment is the outcome of aligning two texts. Errors counts the
// units the aligner could not match.
type Alignment struct {
	Segments []Segment
	Errors   int
}

// Aligner computes alignments. Implementations must be safe for concurrent use.
type Aligner interface {
	Align(ctx context.Context, source, target string, cfg AlignmentConfig) (Alignment, error)
}

// AlignmentPair names two selections to align with each other.
type AlignmentPair struct {
	Source TextSelection
	Target TextSelection
}

type alignJob struct {
	pair   AlignmentPair
	source string
	target string
	result Alignment
}

// Transpose aligns every pair concurrently and records each non-empty
// alignment as a transposition: a DirectionalSelector over two side
// annotations, each of which targets its aligned segments through a
// CompositeSelector. The store is not locked while aligners run.
func (s *AnnotationStore) Transpose(ctx context.Context, pairs []AlignmentPair, aligner Aligner, cfg AlignmentConfig) ([]AnnotationHandle, error) {
	if aligner == nil {
		return nil, errors.NewInvalidRequestError("no aligner given")
	}
	jobs, err := s.alignJobs(pairs)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i := range jobs {
		job := &jobs[i]
		g.Go(func() error {
			res, err := aligner.Align(gctx, job.source, job.target, cfg)
			if err != nil {
				return errors.Wrapf(err, "aligning %s with %s", job.pair.Source, job.pair.Target)
			}
			job.result = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AnnotationHandle
	for i := range jobs {
		h, ok, err := s.recordTransposition(&jobs[i], cfg, i)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *AnnotationStore) alignJobs(pairs []AlignmentPair) ([]alignJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]alignJob, len(pairs))
	for i, p := range pairs {
		src, err := s.selectionText(p.Source)
		if err != nil {
			return nil, err
		}
		tgt, err := s.selectionText(p.Target)
		if err != nil {
			return nil, err
		}
		jobs[i] = alignJob{pair: p, source: src, target: tgt}
	}
	return jobs, nil
}

func (s *AnnotationStore) selectionText(ts TextSelection) (string, error) {
	r, ok := s.liveResource(ts.Resource)
	if !ok {
		return "", errors.NewNotFoundError("resource %d", ts.Resource)
	}
	return r.text.Slice(ts.Span())
}

// segmentsFor applies the alignment policy to an aligner's raw result.
func (s *AnnotationStore) segmentsFor(job *alignJob, cfg AlignmentConfig) []Segment {
	if cfg.MaxErrors > 0 && job.result.Errors > cfg.MaxErrors {
		return nil
	}
	var segs []Segment
	for _, seg := range job.result.Segments {
		abs := Segment{
			Source: text.Span{Begin: job.pair.Source.Begin + seg.Source.Begin, End: job.pair.Source.Begin + seg.Source.End},
			Target: text.Span{Begin: job.pair.Target.Begin + seg.Target.Begin, End: job.pair.Target.Begin + seg.Target.End},
		}
		if cfg.Trim {
			abs.Source = s.stripSpan(job.pair.Source.Resource, abs.Source)
			abs.Target = s.stripSpan(job.pair.Target.Resource, abs.Target)
		}
		if abs.Source.Len() < cfg.MinimalAlignLength || abs.Target.Len() < cfg.MinimalAlignLength {
			continue
		}
		if abs.Source.Len() == 0 && abs.Target.Len() == 0 {
			continue
		}
		segs = append(segs, abs)
	}
	if len(segs) == 0 {
		return nil
	}
	if cfg.Grow {
		first, last := segs[0], segs[len(segs)-1]
		segs = []Segment{{
			Source: text.Span{Begin: first.Source.Begin, End: last.Source.End},
			Target: text.Span{Begin: first.Target.Begin, End: last.Target.End},
		}}
	}
	if cfg.SimpleOnly && len(segs) > 1 {
		longest := segs[0]
		for _, seg := range segs[1:] {
			if seg.Source.Len() > longest.Source.Len() {
				longest = seg
			}
		}
		segs = []Segment{longest}
	}
	return segs
}

func (s *AnnotationStore) stripSpan(res ResourceHandle, span text.Span) text.Span {
	r, ok := s.liveResource(res)
	if !ok {
		return span
	}
	stripped, err := r.text.Strip(span, "")
	if err != nil {
		return span
	}
	return stripped
}

func (s *AnnotationStore) transpositionID(cfg AlignmentConfig, n int, suffix string) string {
	if cfg.AnnotationIDPrefix == "" {
		return ""
	}
	id := fmt.Sprintf("%s%d%s", cfg.AnnotationIDPrefix, n, suffix)
	for i := 2; ; i++ {
		if _, taken := s.annotationIDs[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s%d%s.%d", cfg.AnnotationIDPrefix, n, suffix, i)
	}
}

func (s *AnnotationStore) recordTransposition(job *alignJob, cfg AlignmentConfig, n int) (AnnotationHandle, bool, error) {
	segs := s.segmentsFor(job, cfg)
	if len(segs) == 0 {
		if cfg.Verbose {
			s.log.Infow("no alignment", "source", job.pair.Source.String(), "target", job.pair.Target.String())
		}
		return 0, false, nil
	}
	side := func(res ResourceHandle, pick func(Segment) text.Span) SelectorBuilder {
		subs := make([]SelectorBuilder, len(segs))
		for i, seg := range segs {
			span := pick(seg)
			subs[i] = TextSelector(ByHandle(res), text.Simple(span.Begin, span.End))
		}
		return CompositeSelector(subs...)
	}
	sideData := []DataBuilder{NewData(TranspositionSet, TranspositionSideKey, value.Null())}

	src, err := s.annotate(AnnotationBuilder{
		ID:     s.transpositionID(cfg, n, "-source"),
		Target: side(job.pair.Source.Resource, func(seg Segment) text.Span { return seg.Source }),
		Data:   sideData,
	})
	if err != nil {
		return 0, false, err
	}
	tgt, err := s.annotate(AnnotationBuilder{
		ID:     s.transpositionID(cfg, n, "-target"),
		Target: side(job.pair.Target.Resource, func(seg Segment) text.Span { return seg.Target }),
		Data:   sideData,
	})
	if err != nil {
		return 0, false, err
	}
	h, err := s.annotate(AnnotationBuilder{
		ID:     s.transpositionID(cfg, n, ""),
		Target: DirectionalSelector(AnnotationSelector(ByHandle(src), nil), AnnotationSelector(ByHandle(tgt), nil)),
		Data:   []DataBuilder{NewData(TranspositionSet, TranspositionKey, value.Null())},
	})
	if err != nil {
		return 0, false, err
	}
	if cfg.Verbose {
		s.log.Infow("transposition added",
			logger.FieldAnnotation, s.annotations[h].PublicID(),
			"source", job.pair.Source.String(),
			"target", job.pair.Target.String(),
			logger.FieldCount, len(segs))
	}
	return h, true, nil
}

// TokenAligner aligns the longest common subsequence of whitespace
// separated tokens. Adjacent matched tokens merge into one segment.
type TokenAligner struct{}

type token struct {
	span text.Span
	norm string
}

func tokenize(s string, caseSensitive bool) []token {
	var out []token
	pos, begin := 0, -1
	var cur strings.Builder
	flush := func() {
		if begin >= 0 {
			norm := cur.String()
			if !caseSensitive {
				norm = strings.ToLower(norm)
			}
			out = append(out, token{span: text.Span{Begin: begin, End: pos}, norm: norm})
			begin = -1
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			flush()
		} else {
			if begin < 0 {
				begin = pos
			}
			cur.WriteRune(r)
		}
		pos++
	}
	flush()
	return out
}

// Align implements Aligner.
func (TokenAligner) Align(ctx context.Context, source, target string, cfg AlignmentConfig) (Alignment, error) {
	a := tokenize(source, cfg.CaseSensitive)
	b := tokenize(target, cfg.CaseSensitive)

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return Alignment{}, err
		}
		for j := len(b) - 1; j >= 0; j-- {
			if a[i].norm == b[j].norm {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var res Alignment
	i, j := 0, 0
	lastI, lastJ := -2, -2
	for i < len(a) && j < len(b) {
		switch {
		case a[i].norm == b[j].norm:
			n := len(res.Segments)
			if n > 0 && lastI == i-1 && lastJ == j-1 {
				res.Segments[n-1].Source.End = a[i].span.End
				res.Segments[n-1].Target.End = b[j].span.End
			} else {
				res.Segments = append(res.Segments, Segment{Source: a[i].span, Target: b[j].span})
			}
			lastI, lastJ = i, j
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	res.Errors = len(a) + len(b) - 2*lcs[0][0]
	return res, nil
}
