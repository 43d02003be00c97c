package pumped

// Deps is a named, ordered dependency map — the normalized form every
// executor and flow constructor lowers into. Positional sugar
// (Derive1..Derive5, Flow1..Flow5) builds one of these under the hood and
// names each slot dep0, dep1, ... in call order.
type Deps struct {
	order   []string
	entries map[string]Dependency
}

// NewDeps creates an empty dependency map.
func NewDeps() *Deps {
	return &Deps{entries: make(map[string]Dependency)}
}

// With adds a named dependency, returning the same *Deps for chaining.
func (d *Deps) With(name string, dep Dependency) *Deps {
	if _, exists := d.entries[name]; !exists {
		d.order = append(d.order, name)
	}
	d.entries[name] = dep
	return d
}

// Dep declares a dependency on another executor, resolved eagerly before
// the depending factory runs.
func Dep[T any](executor *Executor[T]) Dependency {
	return executor
}

// ResolvedDeps is the resolved form of a Deps map, handed to a factory.
// Values are read out with the package-level DepValue/DepAccessor/DepTag/
// DepTagAll helpers, since methods cannot carry their own type parameter.
type ResolvedDeps struct {
	values map[string]any
}

// DepValue reads an eager executor dependency out of resolved deps.
func DepValue[T any](d *ResolvedDeps, name string) T {
	val, _ := d.values[name].(T)
	return val
}

// DepAccessor reads a Lazy dependency out of resolved deps as a Controller.
func DepAccessor[T any](d *ResolvedDeps, name string) *Controller[T] {
	ctrl, _ := d.values[name].(*Controller[T])
	return ctrl
}

// DepTag reads a RequiredTag or OptionalTag dependency out of resolved deps.
func DepTag[T any](d *ResolvedDeps, name string) T {
	val, _ := d.values[name].(T)
	return val
}

// DepTagAll reads an AllTag dependency out of resolved deps.
func DepTagAll[T any](d *ResolvedDeps, name string) []T {
	val, _ := d.values[name].([]T)
	return val
}
