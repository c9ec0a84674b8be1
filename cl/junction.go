package cl

// Junction is a borrowed reference from a dependent object to a
// collaborator. It never owns the referent; the referent must outlive every
// use. Bind replaces the previous reference.
type Junction[T any] struct {
	ref *T
}

func (j *Junction[T]) Bind(v *T) { j.ref = v }

// Get returns the bound collaborator or nil.
func (j *Junction[T]) Get() *T { return j.ref }

func (j *Junction[T]) Bound() bool { return j.ref != nil }
