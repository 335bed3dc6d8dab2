// Package refcount implements intrusive atomic reference counting for
// objects that cross goroutine boundaries.
//
// A shared type embeds Object; goroutines hold it through strong Ptr
// handles. The count starts at zero and every handle accounts for exactly
// one reference. When the last handle is dropped the pointee's Finalize
// method (if any) runs, which is the customization point for objects that
// live in preallocated storage and must not be released to the allocator.
package refcount

import (
	"fmt"
	"sync/atomic"
)

// Object is the intrusive counter. Embed it in any type shared through Ptr
// handles. The zero value is an unreferenced object.
type Object struct {
	count atomic.Int32
}

func (o *Object) state() *Object { return o }

// AddRef adjusts the reference count and returns its previous value.
// Decrementing below zero panics: a double release is not defensible.
func (o *Object) AddRef(delta int32) int32 {
	prev := o.count.Add(delta) - delta
	if prev+delta < 0 {
		panic(fmt.Sprintf("refcount: count %d after delta %d", prev+delta, delta))
	}
	return prev
}

// Live returns the current reference count.
func (o *Object) Live() int32 { return o.count.Load() }

// Referent is satisfied by any type embedding Object.
type Referent interface {
	state() *Object
}

// Finalizer is implemented by referents that need to run cleanup when the
// last reference is dropped.
type Finalizer interface {
	Finalize()
}

// Ptr is a strong handle to a refcounted object. The zero value is nil.
//
// A Ptr itself is not synchronized: hand a Clone to another goroutine
// rather than sharing one handle. The pointee may be shared freely.
type Ptr[T interface {
	Referent
	comparable
}] struct {
	obj T
}

// New wraps obj in a fresh handle, taking one reference.
func New[T interface {
	Referent
	comparable
}](obj T) Ptr[T] {
	var zero T
	if obj != zero {
		obj.state().AddRef(1)
	}
	return Ptr[T]{obj: obj}
}

// Get returns the referenced object, or the zero value for a nil handle.
func (p Ptr[T]) Get() T { return p.obj }

// IsNil reports whether the handle references nothing.
func (p Ptr[T]) IsNil() bool {
	var zero T
	return p.obj == zero
}

// Clone returns a new handle to the same object, incrementing the count.
func (p Ptr[T]) Clone() Ptr[T] {
	return New(p.obj)
}

// Reset drops the handle's reference and clears it. If this was the last
// reference the pointee's Finalize hook runs.
func (p *Ptr[T]) Reset() {
	var zero T
	if p.obj == zero {
		return
	}
	obj := p.obj
	p.obj = zero
	if obj.state().AddRef(-1) == 1 {
		if f, ok := any(obj).(Finalizer); ok {
			f.Finalize()
		}
	}
}

// Swap exchanges the contents of two handles without touching the counts.
func (p *Ptr[T]) Swap(other *Ptr[T]) {
	p.obj, other.obj = other.obj, p.obj
}

// Eq reports whether two handles reference the same object.
func (p Ptr[T]) Eq(other Ptr[T]) bool { return p.obj == other.obj }
