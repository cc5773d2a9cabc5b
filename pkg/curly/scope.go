package curly

// Scope is one layer of bindings in a read-through chain. Lookups that miss
// fall back to the parent; bindings are only ever added to the layer they
// were set on, so a child never changes what its parent sees.
type Scope struct {
	parent *Scope
	vars   map[string]Value
}

// NewScope returns a root scope holding the converted context values. The
// whole context converts in one pass, so a slice, map or pointer bound under
// two names is the same value.
func NewScope(ctx Context) *Scope {
	s := &Scope{vars: make(map[string]Value, len(ctx))}
	c := newConverter()
	for k, v := range ctx {
		s.vars[k] = c.convert(v)
	}
	return s
}

// Child returns an empty scope layered on top of s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s}
}

// Set binds name in this layer only.
func (s *Scope) Set(name string, v Value) {
	if s.vars == nil {
		s.vars = make(map[string]Value, 2)
	}
	s.vars[name] = v
}

// Lookup resolves name through the chain.
func (s *Scope) Lookup(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Get resolves name, returning Undefined when it is not bound anywhere.
func (s *Scope) Get(name string) Value {
	if v, ok := s.Lookup(name); ok {
		return v
	}
	return Undefined
}

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope { return s.parent }
