package rpc

import (
	"fmt"
)

// Descriptor uniquely identifies a remote callable as an interface/operation
// pair. Descriptors are immutable value types; they are created once per
// interface definition and never mutated.
type Descriptor struct {
	Interface string
	Operation string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s.%s", d.Interface, d.Operation)
}

// Definition describes a remote interface: its name and the set of operations
// it exposes. A Definition is the registration-time counterpart of the
// per-call Descriptor.
type Definition struct {
	Interface  string
	Operations []string
}

// NewDefinition creates a definition for the named interface exposing the
// given operations.
func NewDefinition(name string, operations ...string) Definition {
	return Definition{
		Interface:  name,
		Operations: operations,
	}
}

// HasOperation checks whether the definition exposes the named operation.
func (d Definition) HasOperation(operation string) bool {
	for _, op := range d.Operations {
		if op == operation {
			return true
		}
	}
	return false
}

// Descriptor returns the descriptor for the named operation on this interface.
func (d Definition) Descriptor(operation string) Descriptor {
	return Descriptor{
		Interface: d.Interface,
		Operation: operation,
	}
}
