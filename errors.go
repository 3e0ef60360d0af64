/*
Copyright © 2019 the Flowsheet authors.
This file is part of Flowsheet.

Flowsheet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsheet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsheet.  If not, see <http://www.gnu.org/licenses/>.
*/

package flowsheet

import (
	"errors"
	"fmt"
)

// These are the kinds of error returned while building a model. Use
// errors.Is to test for them.
var (
	// ErrConfiguration indicates a structurally invalid or ambiguous
	// combination of options, or an option requested without its
	// prerequisite. Nothing is added to the model when it is returned.
	ErrConfiguration = errors.New("configuration error")

	// ErrPropertyNotSupported indicates that a property or reaction
	// package lacks the metadata a requested feature needs.
	ErrPropertyNotSupported = errors.New("property not supported")

	// ErrBalanceTypeNotSupported indicates a balance type that is not
	// implemented. It can not be resolved by changing other options.
	ErrBalanceTypeNotSupported = errors.New("balance type not supported")

	// ErrDynamic indicates inconsistent time-domain declarations.
	ErrDynamic = errors.New("dynamic error")
)

// Error is an error raised while building the named block.
type Error struct {
	// Kind is one of the Err* values above.
	Kind  error
	Block string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Block, e.Kind, e.Msg)
}

// Unwrap returns the kind of e.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, block, format string, a ...interface{}) error {
	return &Error{Kind: kind, Block: block, Msg: fmt.Sprintf(format, a...)}
}
