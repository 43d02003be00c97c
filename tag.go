package pumped

import (
	"fmt"

	"github.com/flowcore-dev/pumped/pkg/schema"
)

// tagSymbol is the internal identity of a Tag. Two Tag[T] values built from
// the same label are still distinct tags unless they share a symbol — tags
// are compared by identity, not by label, matching spec.md's "stable
// identity (internal symbol derived from the label)".
type tagSymbol struct {
	label string
}

// TagSource is anything a Tag can read a value from: an AnyExecutor, a
// *Scope, an *ExecutionCtx, or a flow's static tag set.
type TagSource interface {
	GetTag(key any) (any, bool)
}

// TagStore is anything a Tag can write a value into.
type TagStore interface {
	SetTag(key any, val any)
}

// Tag is a strongly-typed metadata key with an optional validation schema
// and an optional default value.
type Tag[T any] struct {
	label      string
	sym        *tagSymbol
	schema     schema.Schema
	def        T
	hasDefault bool
}

// TagOption configures a Tag at construction.
type TagOption[T any] func(*Tag[T])

// WithSchema attaches a validation schema; every write through Set or
// MustSet validates the value before storing it.
func WithSchema[T any](s schema.Schema) TagOption[T] {
	return func(t *Tag[T]) { t.schema = s }
}

// WithDefault gives the tag a fallback value for Read/Extract when no
// source holds one.
func WithDefault[T any](def T) TagOption[T] {
	return func(t *Tag[T]) {
		t.def = def
		t.hasDefault = true
	}
}

// NewTag creates a new tag identified by label, for diagnostics only — two
// tags with the same label are still distinct unless the same Tag[T] value
// is shared.
func NewTag[T any](label string, opts ...TagOption[T]) Tag[T] {
	t := Tag[T]{label: label, sym: &tagSymbol{label: label}}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Label returns the tag's human-readable label.
func (t Tag[T]) Label() string { return t.label }

// key is the comparable map key used in every tag store. It is always the
// symbol pointer, never the Tag[T] struct itself, because T may not be
// comparable (e.g. a default slice or map value).
func (t Tag[T]) key() any { return t.sym }

func (t Tag[T]) validate(val T) (T, error) {
	if t.schema == nil {
		return val, nil
	}
	validated, err := t.schema.Validate(val)
	if err != nil {
		return val, fmt.Errorf("tag %q: %w", t.label, err)
	}
	typed, ok := validated.(T)
	if !ok {
		return val, fmt.Errorf("tag %q: schema returned %T, want %T", t.label, validated, val)
	}
	return typed, nil
}

// Set validates val and writes it into store under this tag's identity.
func (t Tag[T]) Set(store TagStore, val T) error {
	validated, err := t.validate(val)
	if err != nil {
		return err
	}
	store.SetTag(t.key(), validated)
	return nil
}

// MustSet is Set, panicking on a schema violation — appropriate at
// executor/flow construction time, where validation failures are
// programmer errors, not runtime conditions.
func (t Tag[T]) MustSet(store TagStore, val T) {
	if err := t.Set(store, val); err != nil {
		panic(err)
	}
}

// ReadOK reads this tag's value from source, reporting whether it was
// present (ignoring any default).
func (t Tag[T]) ReadOK(source TagSource) (T, bool) {
	val, ok := source.GetTag(t.key())
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// Read returns the tag's value from source, falling back to the default
// (or the zero value, if none) when absent. This is spec.md's "readFrom".
func (t Tag[T]) Read(source TagSource) T {
	if val, ok := t.ReadOK(source); ok {
		return val
	}
	return t.def
}

// Extract returns the tag's value from source, failing with
// MissingTagError when absent and no default was configured. This is
// spec.md's "extractFrom".
func (t Tag[T]) Extract(source TagSource) (T, error) {
	if val, ok := t.ReadOK(source); ok {
		return val, nil
	}
	if t.hasDefault {
		return t.def, nil
	}
	var zero T
	return zero, &MissingTagError{Label: t.label}
}

// Collect reads this tag's value from every source that has one. This is
// spec.md's "collectFrom" (the multi tag binding).
func (t Tag[T]) Collect(sources ...TagSource) []T {
	var out []T
	for _, src := range sources {
		if val, ok := t.ReadOK(src); ok {
			out = append(out, val)
		}
	}
	return out
}

var execNameTag = NewTag[string]("executor.name")

// ExecutorName is the tag extensions use to read/write a human-readable
// name for an executor, used in error messages and graph diagnostics.
func ExecutorName() Tag[string] { return execNameTag }
