package buildconfig

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResolution indicates a mode or preset name has no registered fragment.
var ErrResolution = errors.New("resolution error")

// ResolutionError names the kind and name that could not be resolved along
// with the names that were available.
type ResolutionError struct {
	Kind  string // "mode" or "preset"
	Name  string
	Known []string
}

func (e *ResolutionError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown %s %q: no %ss registered", e.Kind, e.Name, e.Kind)
	}
	return fmt.Sprintf("unknown %s %q (known: %s)", e.Kind, e.Name, strings.Join(e.Known, ", "))
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
