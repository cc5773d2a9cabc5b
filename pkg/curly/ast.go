package curly

// Expr is a node of a parsed expression.
type Expr interface {
	Position() Pos
}

// Literal is a constant: number, string, boolean, null or undefined.
type Literal struct {
	Value Value
	At    Pos
}

// Identifier is a name resolved against the scope chain.
type Identifier struct {
	Name string
	At   Pos
}

// Member is obj.name (Computed false, Property is a string Literal) or
// obj[expr] (Computed true).
type Member struct {
	Object   Expr
	Property Expr
	Computed bool
	At       Pos
}

// Call is callee(args...).
type Call struct {
	Callee Expr
	Args   []Expr
	At     Pos
}

// Binary is left op right.
type Binary struct {
	Op    TokenKind
	Left  Expr
	Right Expr
	At    Pos
}

// Unary is !x or -x.
type Unary struct {
	Op      TokenKind
	Operand Expr
	At      Pos
}

// Conditional is test ? consequent : alternate.
type Conditional struct {
	Test       Expr
	Consequent Expr
	Alternate  Expr
	At         Pos
}

func (n *Literal) Position() Pos     { return n.At }
func (n *Identifier) Position() Pos  { return n.At }
func (n *Member) Position() Pos      { return n.At }
func (n *Call) Position() Pos        { return n.At }
func (n *Binary) Position() Pos      { return n.At }
func (n *Unary) Position() Pos       { return n.At }
func (n *Conditional) Position() Pos { return n.At }

// Pipeline is the parsed form of a directive expression: a base expression
// followed by zero or more filters, applied left to right.
type Pipeline struct {
	Base    Expr
	Filters []FilterCall
}

// FilterCall is one `| name(args...)` stage.
type FilterCall struct {
	Name string
	Args []Expr
	At   Pos
}

// Node is any node of a parsed template.
type Node interface {
	node()
}

// TextNode is literal text between directives.
type TextNode struct {
	Text string
}

// OutputNode is an interpolation: {{ expr }}.
type OutputNode struct {
	Expr     string
	Pipeline *Pipeline
	At       Pos
}

// IfNode is {{#if}}. An {{#elseif}} chain is folded into a nested IfNode
// as the only element of Else.
type IfNode struct {
	Cond string
	Test *Pipeline
	Then []Node
	Else []Node
	At   Pos
}

// ForNode is {{#for Var in Iterable}}.
type ForNode struct {
	Var      string
	Iterable string
	Items    *Pipeline
	Body     []Node
	At       Pos
}

// EachNode is {{#each Value, Key in Iterable}}.
type EachNode struct {
	Value    string
	Key      string
	Iterable string
	Items    *Pipeline
	Body     []Node
	At       Pos
}

func (*TextNode) node()   {}
func (*OutputNode) node() {}
func (*IfNode) node()     {}
func (*ForNode) node()    {}
func (*EachNode) node()   {}
