package store

// Kind classifies what a variable's integer encoding represents (spec §3.1).
type Kind uint8

const (
	// KindInt is a plain integer decision variable.
	KindInt Kind = iota
	// KindBool is a 0/1 variable; PositiveLiteral/NegativeLiteral apply.
	KindBool
	// KindFixedPoint is a fixed-point time variable sharing a denominator
	// with its siblings, consumed by the difference-logic theory (§4.5).
	KindFixedPoint
	// KindSymbol is an ordinal standing in for a symbolic/enum value
	// (object, action, etc.) assigned by the external chronicle translator.
	KindSymbol
)

// Variable is the static, immutable metadata recorded when a variable is
// created. Its *current* bounds live in the Store; Variable itself never
// changes once built (spec §3.1: "created once during problem build; never
// destroyed").
type Variable struct {
	ID       VarID
	Kind     Kind
	Label    string
	Presence Literal
	// Denom is only meaningful for KindFixedPoint variables: the variable's
	// integer domain represents value/Denom.
	Denom int64
}
