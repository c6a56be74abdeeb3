package store

// Explanation accumulates the set of entailed literals whose conjunction is
// claimed to imply some other literal, or to be jointly unsatisfiable (spec
// §4.3, §7). It is a thin, reusable buffer: reasoners append to it rather
// than allocating a fresh slice per call.
type Explanation struct {
	Literals []Literal
}

// Reset empties the explanation for reuse.
func (e *Explanation) Reset() {
	e.Literals = e.Literals[:0]
}

// Add appends a literal to the explanation.
func (e *Explanation) Add(l Literal) {
	e.Literals = append(e.Literals, l)
}

// Explainer is the capability the store calls back into when an inference's
// cause needs to be expanded into its premises (spec §4.2,
// "implying_literals"). Every reasoner implements this through the
// dispatcher the search driver builds (see internal/kernel/search), keyed by
// the Cause's WriterID so that explanations route to the reasoner that
// produced them without the store holding a direct reference to reasoners.
type Explainer interface {
	// Explain expands the inference identified by (lit, payload) into a set
	// of literals entailed as of snap that together imply lit, appending them
	// to exp.
	Explain(lit Literal, payload uint32, snap *Snapshot, exp *Explanation)
}
