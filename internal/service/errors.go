package service

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrEngineFault marks failures caused by the rule set, such as
	// derivation that never reaches a fixpoint. They need an operator, not a
	// producer retry.
	ErrEngineFault = errors.New("inference engine fault")

	// ErrStoreFault marks failures of the fact store. Shared graphs are left
	// as they were before the operation.
	ErrStoreFault = errors.New("fact store fault")

	ErrInvalidFact     = errors.New("invalid fact")
	ErrInvalidProducer = errors.New("invalid producer id")
)

func storeFault(err error) error {
	return errors.Mark(err, ErrStoreFault)
}

func engineFault(err error) error {
	return errors.Mark(err, ErrEngineFault)
}

// MarkStoreFault marks err as a fact store failure for callers reading the
// graphs directly.
func MarkStoreFault(err error) error {
	return storeFault(err)
}
