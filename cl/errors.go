package cl

import (
	"errors"
	"fmt"
	"github.com/notargets/clkit/native"
)

// ErrSourceFile is matched by errors.Is for every SourceFileError.
var ErrSourceFile = errors.New("cl: cannot open program source")

// SourceFileError reports a program source file that could not be read.
// No native call is made in that case.
type SourceFileError struct {
	Path string
	Err  error
}

func (e *SourceFileError) Error() string {
	return fmt.Sprintf("cl: open program source %s: %v", e.Path, e.Err)
}

func (e *SourceFileError) Unwrap() []error { return []error{ErrSourceFile, e.Err} }

// BuildError reports source that was accepted by the runtime but did not
// compile. Log holds the runtime's build log.
type BuildError struct {
	Status native.Status
	Log    string
}

func (e *BuildError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("cl: build failed: %v", e.Status)
	}
	return fmt.Sprintf("cl: build failed: %v\n%s", e.Status, e.Log)
}

func (e *BuildError) Unwrap() error { return e.Status }
