package cl

import (
	"github.com/notargets/clkit/native"
	"os"
)

// Program is a compiled program. A build failure keeps the handle so the
// log stays available; Release cleans it up.
type Program struct {
	Handle[native.Program, releaseProgram]
	creation
	context Junction[Context]

	// Options is passed to the compiler by the next build.
	Options string
	log     string
}

// WrapProgram adopts an existing program handle.
func WrapProgram(api native.API, h native.Program, releaseOnDestroy bool) *Program {
	p := &Program{}
	p.reset(api, h, releaseOnDestroy)
	return p
}

// BuildFromSource creates a program from src in c and compiles it. A
// failure to create the program is returned as the native status; a failure
// to compile is returned as *BuildError.
func (p *Program) BuildFromSource(c *Context, src string) error {
	if c == nil || !c.Valid() {
		return p.done(native.InvalidContext)
	}
	api := c.API()
	h, st := api.CreateProgramWithSource(c.Native(), src)
	if !st.OK() {
		p.Release()
		return p.done(st)
	}
	p.reset(api, h, true)
	p.BindContext(c)
	logCreated("program", uintptr(h))
	st = api.BuildProgram(h, p.Options)
	p.log = api.ProgramBuildLog(h)
	if !st.OK() {
		p.status = st
		return &BuildError{Status: st, Log: p.log}
	}
	return p.done(st)
}

// BuildFromFile reads the whole file at path and builds it. A file that
// cannot be read yields *SourceFileError and creates nothing.
func (p *Program) BuildFromFile(c *Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		p.status = native.InvalidProgram
		return &SourceFileError{Path: path, Err: err}
	}
	return p.BuildFromSource(c, string(src))
}

// BuildLog returns the log of the last build.
func (p *Program) BuildLog() string { return p.log }

func (p *Program) BindContext(c *Context) { p.context.Bind(c) }
func (p *Program) Context() *Context      { return p.context.Get() }

func (p *Program) Move() *Program {
	n := &Program{creation: p.creation, context: p.context, Options: p.Options, log: p.log}
	p.MoveTo(&n.Handle)
	return n
}
