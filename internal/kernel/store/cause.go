package store

// WriterID is the stable 8-bit identity of a reasoner (spec §4.3,
// "identity() -> u8"). It is embedded in every inferred Cause so that the
// store can route explanation requests back to the reasoner that produced
// the inference, without the store holding a reference to the reasoner
// itself.
type WriterID uint8

const (
	// WriterDecision is the pseudo-writer used for causes produced by a
	// search decision rather than an inference.
	WriterDecision WriterID = 0
	// WriterEncoding is the pseudo-writer used for causes produced while
	// instantiating the problem (e.g. root-level unit propagation of a
	// literal that the caller declared directly), with no reasoner to
	// explain them beyond "this was asserted at encoding time".
	WriterEncoding WriterID = 1
	// WriterSAT is the fixed identity of the SAT engine (spec §4.4).
	WriterSAT WriterID = 2
	// WriterSTN is the fixed identity of the difference-logic theory
	// (spec §4.5).
	WriterSTN WriterID = 3
	// WriterEq is the fixed identity of the equality theory (spec §4.6).
	WriterEq WriterID = 4
	// firstUserWriter is the first identity available to theories added by
	// an embedding application beyond the two built into this kernel.
	firstUserWriter WriterID = 5
)

// CauseKind distinguishes why an event was recorded (spec §3.1).
type CauseKind uint8

const (
	// CauseDecision marks an event produced by the search driver picking a
	// branching literal.
	CauseDecision CauseKind = iota
	// CauseInference marks an event produced by a reasoner's propagation.
	CauseInference
	// CauseEncoding marks an event produced while the problem was being
	// built, before search started.
	CauseEncoding
)

// Cause is the provenance tag embedded in every trail event (spec §3.1).
// Payload is an opaque 32-bit value meaningful only to the writer reasoner
// (e.g. a clause id for the SAT engine, an edge id for the STN).
type Cause struct {
	Kind    CauseKind
	Writer  WriterID
	Payload uint32
}

// DecisionCause is the cause recorded for a branching decision.
func DecisionCause() Cause { return Cause{Kind: CauseDecision, Writer: WriterDecision} }

// EncodingCause is the cause recorded for a literal set directly by problem
// construction (before search, or a tautology discovered during binding).
func EncodingCause() Cause { return Cause{Kind: CauseEncoding, Writer: WriterEncoding} }

// InferenceCause is the cause recorded for an inference made by writer with
// the given explanatory payload.
func InferenceCause(writer WriterID, payload uint32) Cause {
	return Cause{Kind: CauseInference, Writer: writer, Payload: payload}
}
