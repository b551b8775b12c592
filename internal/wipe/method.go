package wipe

import (
	cerr "github.com/cockroachdb/errors"
)

// WipeMethod определяет стандарт затирания
type WipeMethod string

const (
	MethodQuick WipeMethod = "quick"
	MethodNIST  WipeMethod = "nist"
	MethodDoD   WipeMethod = "dod"
)

// PatternKind определяет источник байтов для прохода
type PatternKind string

const (
	PatternZeros  PatternKind = "zeros"
	PatternOnes   PatternKind = "ones"
	PatternRandom PatternKind = "random"
)

// PassSpec describes one overwrite pass: which pattern, and its position
// in the method's fixed sequence.
type PassSpec struct {
	Pattern PatternKind
	Index   int
}

// ErrInvalidMethod is returned for method identifiers outside the known set.
// It is an invocation-level error: nothing destructive happens after it.
var ErrInvalidMethod = cerr.New("unknown wipe method")

// ParseMethod validates a user-supplied method identifier.
func ParseMethod(s string) (WipeMethod, error) {
	m := WipeMethod(s)
	switch m {
	case MethodQuick, MethodNIST, MethodDoD:
		return m, nil
	default:
		return "", cerr.Wrapf(ErrInvalidMethod, "%q", s)
	}
}

// PassesFor returns the fixed, ordered pass sequence for a method.
//
//	quick: 1 pass, cryptographic random
//	nist:  1 pass, cryptographic random (NIST SP 800-88 Clear; verification mandatory)
//	dod:   3 passes, zeros then 0xFF then cryptographic random (DoD 5220.22-M)
func PassesFor(m WipeMethod) ([]PassSpec, error) {
	switch m {
	case MethodQuick, MethodNIST:
		return []PassSpec{{Pattern: PatternRandom, Index: 0}}, nil
	case MethodDoD:
		return []PassSpec{
			{Pattern: PatternZeros, Index: 0},
			{Pattern: PatternOnes, Index: 1},
			{Pattern: PatternRandom, Index: 2},
		}, nil
	default:
		return nil, cerr.Wrapf(ErrInvalidMethod, "%q", m)
	}
}

// RequiresVerification reports whether the standard itself mandates a
// verification read. NIST requires confirmation of erasure, not merely the
// pattern choice; DoD likewise expects a verify step after the final pass.
func (m WipeMethod) RequiresVerification() bool {
	return m == MethodNIST || m == MethodDoD
}
