package ast

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned (wrapped in a *DecodeError) when an AST document
// does not describe a well-formed tree.
var ErrMalformed = errors.New("malformed AST document")

// DecodeError reports where in the AST document decoding failed.
type DecodeError struct {
	Path string // JSON-pointer-like path to the offending node
	Line int    // line in the document (not the original source)
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ast: %s (document line %d): %s", e.Path, e.Line, e.Msg)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

// Decode reads an ESTree-shaped AST document. JSON is accepted as a subset of YAML.
// Both the ESTree generic `Literal` node and the typed literal kinds
// (NumericLiteral, StringLiteral, ...) are understood.
func Decode(data []byte) (*Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ast: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, &DecodeError{Path: "/", Line: 1, Msg: "empty document"}
		}
		root = root.Content[0]
	}
	d := &decoder{}
	return d.program(root, "")
}

// DecodeFile reads and decodes the AST document at path.
func DecodeFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if prog.File == "" {
		prog.File = path
	}
	return prog, nil
}

type decoder struct{}

// object is a decoded mapping node with its path for diagnostics.
type object struct {
	node   *yaml.Node
	path   string
	fields map[string]*yaml.Node
}

func (d *decoder) fail(n *yaml.Node, path, format string, args ...interface{}) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &DecodeError{Path: path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) object(n *yaml.Node, path string) (*object, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil, d.fail(n, path, "expected a node object")
	}
	o := &object{node: n, path: path, fields: make(map[string]*yaml.Node, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		o.fields[n.Content[i].Value] = n.Content[i+1]
	}
	return o, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func (o *object) typ() string {
	if t, ok := o.fields["type"]; ok && t.Kind == yaml.ScalarNode {
		return t.Value
	}
	return ""
}

func (o *object) str(name string) string {
	if v, ok := o.fields[name]; ok && v.Kind == yaml.ScalarNode && v.Tag != "!!null" {
		return v.Value
	}
	return ""
}

func (o *object) flag(name string) bool {
	v, ok := o.fields[name]
	if !ok || v.Kind != yaml.ScalarNode {
		return false
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		return false
	}
	return b
}

// pos reads an ESTree `loc.start` or, failing that, flat `line`/`column` fields.
func (o *object) pos() Position {
	if loc, ok := o.fields["loc"]; ok && loc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(loc.Content); i += 2 {
			if loc.Content[i].Value != "start" {
				continue
			}
			var p struct {
				Line   int `yaml:"line"`
				Column int `yaml:"column"`
			}
			if err := loc.Content[i+1].Decode(&p); err == nil {
				return Position{Line: p.Line, Column: p.Column}
			}
		}
	}
	var p Position
	if v, ok := o.fields["line"]; ok {
		_ = v.Decode(&p.Line)
	}
	if v, ok := o.fields["column"]; ok {
		_ = v.Decode(&p.Column)
	}
	return p
}

func (d *decoder) program(n *yaml.Node, path string) (*Program, error) {
	o, err := d.object(n, path)
	if err != nil {
		return nil, err
	}
	if t := o.typ(); t != "Program" && t != "Script" && t != "Module" {
		return nil, d.fail(n, path, "root node must be a Program, got %q", t)
	}
	body, err := d.statements(o, "body")
	if err != nil {
		return nil, err
	}
	return &Program{
		Start:      o.pos(),
		File:       o.str("sourceFile"),
		SourceType: o.str("sourceType"),
		Body:       body,
	}, nil
}

func (d *decoder) list(o *object, name string) ([]*yaml.Node, error) {
	v, ok := o.fields[name]
	if !ok || isNull(v) {
		return nil, nil
	}
	if v.Kind != yaml.SequenceNode {
		return nil, d.fail(v, o.path+"/"+name, "expected a list")
	}
	return v.Content, nil
}

func (d *decoder) statements(o *object, name string) ([]Statement, error) {
	items, err := d.list(o, name)
	if err != nil {
		return nil, err
	}
	out := make([]Statement, 0, len(items))
	for i, item := range items {
		s, err := d.statement(item, fmt.Sprintf("%s/%s/%d", o.path, name, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) expressions(o *object, name string) ([]Expression, error) {
	items, err := d.list(o, name)
	if err != nil {
		return nil, err
	}
	out := make([]Expression, 0, len(items))
	for i, item := range items {
		if isNull(item) {
			out = append(out, nil)
			continue
		}
		e, err := d.expression(item, fmt.Sprintf("%s/%s/%d", o.path, name, i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// optStatement decodes an optional statement field; absent or null yields nil.
func (d *decoder) optStatement(o *object, name string) (Statement, error) {
	v, ok := o.fields[name]
	if !ok || isNull(v) {
		return nil, nil
	}
	return d.statement(v, o.path+"/"+name)
}

func (d *decoder) optExpression(o *object, name string) (Expression, error) {
	v, ok := o.fields[name]
	if !ok || isNull(v) {
		return nil, nil
	}
	return d.expression(v, o.path+"/"+name)
}

func (d *decoder) reqExpression(o *object, name string) (Expression, error) {
	e, err := d.optExpression(o, name)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, d.fail(o.node, o.path, "%s: missing %q", o.typ(), name)
	}
	return e, nil
}

func (d *decoder) reqStatement(o *object, name string) (Statement, error) {
	s, err := d.optStatement(o, name)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, d.fail(o.node, o.path, "%s: missing %q", o.typ(), name)
	}
	return s, nil
}

func (d *decoder) optIdent(o *object, name string) (*Identifier, error) {
	e, err := d.optExpression(o, name)
	if err != nil || e == nil {
		return nil, err
	}
	id, ok := e.(*Identifier)
	if !ok {
		return nil, d.fail(o.fields[name], o.path+"/"+name, "expected an Identifier, got %s", e.Kind())
	}
	return id, nil
}

func (d *decoder) block(o *object, name string) (*BlockStatement, error) {
	s, err := d.optStatement(o, name)
	if err != nil || s == nil {
		return nil, err
	}
	b, ok := s.(*BlockStatement)
	if !ok {
		return nil, d.fail(o.fields[name], o.path+"/"+name, "expected a BlockStatement, got %s", s.Kind())
	}
	return b, nil
}

func (d *decoder) statement(n *yaml.Node, path string) (Statement, error) {
	o, err := d.object(n, path)
	if err != nil {
		return nil, err
	}
	pos := o.pos()
	switch t := o.typ(); t {
	case "VariableDeclaration":
		items, err := d.list(o, "declarations")
		if err != nil {
			return nil, err
		}
		decl := &VariableDeclaration{Start: pos, DeclKind: o.str("kind")}
		if decl.DeclKind == "" {
			decl.DeclKind = "var"
		}
		for i, item := range items {
			vo, err := d.object(item, fmt.Sprintf("%s/declarations/%d", path, i))
			if err != nil {
				return nil, err
			}
			id, err := d.reqExpression(vo, "id")
			if err != nil {
				return nil, err
			}
			init, err := d.optExpression(vo, "init")
			if err != nil {
				return nil, err
			}
			decl.Declarations = append(decl.Declarations, &VariableDeclarator{Start: vo.pos(), ID: id, Init: init})
		}
		return decl, nil

	case "FunctionDeclaration":
		id, err := d.optIdent(o, "id")
		if err != nil {
			return nil, err
		}
		params, err := d.expressions(o, "params")
		if err != nil {
			return nil, err
		}
		body, err := d.block(o, "body")
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = &BlockStatement{Start: pos}
		}
		return &FunctionDeclaration{Start: pos, ID: id, Params: params, Body: body,
			Generator: o.flag("generator"), Async: o.flag("async")}, nil

	case "ClassDeclaration":
		id, err := d.optIdent(o, "id")
		if err != nil {
			return nil, err
		}
		super, err := d.optExpression(o, "superClass")
		if err != nil {
			return nil, err
		}
		return &ClassDeclaration{Start: pos, ID: id, SuperClass: super}, nil

	case "BlockStatement":
		body, err := d.statements(o, "body")
		if err != nil {
			return nil, err
		}
		return &BlockStatement{Start: pos, Body: body}, nil

	case "EmptyStatement":
		return &EmptyStatement{Start: pos}, nil

	case "ExpressionStatement":
		e, err := d.reqExpression(o, "expression")
		if err != nil {
			return nil, err
		}
		return &ExpressionStatement{Start: pos, Expression: e}, nil

	case "IfStatement":
		test, err := d.reqExpression(o, "test")
		if err != nil {
			return nil, err
		}
		cons, err := d.reqStatement(o, "consequent")
		if err != nil {
			return nil, err
		}
		alt, err := d.optStatement(o, "alternate")
		if err != nil {
			return nil, err
		}
		return &IfStatement{Start: pos, Test: test, Consequent: cons, Alternate: alt}, nil

	case "WhileStatement", "DoWhileStatement":
		test, err := d.reqExpression(o, "test")
		if err != nil {
			return nil, err
		}
		body, err := d.reqStatement(o, "body")
		if err != nil {
			return nil, err
		}
		if t == "WhileStatement" {
			return &WhileStatement{Start: pos, Test: test, Body: body}, nil
		}
		return &DoWhileStatement{Start: pos, Body: body, Test: test}, nil

	case "ForStatement":
		var init Statement
		if v, ok := o.fields["init"]; ok && !isNull(v) {
			io, err := d.object(v, path+"/init")
			if err != nil {
				return nil, err
			}
			if io.typ() == "VariableDeclaration" {
				init, err = d.statement(v, path+"/init")
			} else {
				var e Expression
				e, err = d.expression(v, path+"/init")
				if e != nil {
					init = &ExpressionStatement{Start: e.Pos(), Expression: e}
				}
			}
			if err != nil {
				return nil, err
			}
		}
		test, err := d.optExpression(o, "test")
		if err != nil {
			return nil, err
		}
		update, err := d.optExpression(o, "update")
		if err != nil {
			return nil, err
		}
		body, err := d.reqStatement(o, "body")
		if err != nil {
			return nil, err
		}
		return &ForStatement{Start: pos, Init: init, Test: test, Update: update, Body: body}, nil

	case "ReturnStatement":
		arg, err := d.optExpression(o, "argument")
		if err != nil {
			return nil, err
		}
		return &ReturnStatement{Start: pos, Argument: arg}, nil

	case "BreakStatement", "ContinueStatement":
		label, err := d.optIdent(o, "label")
		if err != nil {
			return nil, err
		}
		if t == "BreakStatement" {
			return &BreakStatement{Start: pos, Label: label}, nil
		}
		return &ContinueStatement{Start: pos, Label: label}, nil

	case "SwitchStatement":
		disc, err := d.reqExpression(o, "discriminant")
		if err != nil {
			return nil, err
		}
		items, err := d.list(o, "cases")
		if err != nil {
			return nil, err
		}
		sw := &SwitchStatement{Start: pos, Discriminant: disc}
		for i, item := range items {
			co, err := d.object(item, fmt.Sprintf("%s/cases/%d", path, i))
			if err != nil {
				return nil, err
			}
			test, err := d.optExpression(co, "test")
			if err != nil {
				return nil, err
			}
			cons, err := d.statements(co, "consequent")
			if err != nil {
				return nil, err
			}
			sw.Cases = append(sw.Cases, &SwitchCase{Start: co.pos(), Test: test, Consequent: cons})
		}
		return sw, nil

	case "TryStatement":
		blk, err := d.block(o, "block")
		if err != nil {
			return nil, err
		}
		fin, err := d.block(o, "finalizer")
		if err != nil {
			return nil, err
		}
		try := &TryStatement{Start: pos, Block: blk, Finalizer: fin}
		if h, ok := o.fields["handler"]; ok && !isNull(h) {
			ho, err := d.object(h, path+"/handler")
			if err != nil {
				return nil, err
			}
			param, err := d.optExpression(ho, "param")
			if err != nil {
				return nil, err
			}
			body, err := d.block(ho, "body")
			if err != nil {
				return nil, err
			}
			try.Handler = &CatchClause{Start: ho.pos(), Param: param, Body: body}
		}
		return try, nil

	case "ThrowStatement":
		arg, err := d.reqExpression(o, "argument")
		if err != nil {
			return nil, err
		}
		return &ThrowStatement{Start: pos, Argument: arg}, nil

	case "LabeledStatement":
		label, err := d.optIdent(o, "label")
		if err != nil {
			return nil, err
		}
		body, err := d.reqStatement(o, "body")
		if err != nil {
			return nil, err
		}
		return &LabeledStatement{Start: pos, Label: label, Body: body}, nil

	case "":
		return nil, d.fail(n, path, "node has no type")
	default:
		// Bare expressions appear where some front ends elide ExpressionStatement.
		e, err := d.expression(n, path)
		if err != nil {
			return nil, d.fail(n, path, "unknown statement type %q", t)
		}
		return &ExpressionStatement{Start: pos, Expression: e}, nil
	}
}

func (d *decoder) expression(n *yaml.Node, path string) (Expression, error) {
	o, err := d.object(n, path)
	if err != nil {
		return nil, err
	}
	pos := o.pos()
	switch t := o.typ(); t {
	case "Identifier":
		name := o.str("name")
		if name == "" {
			return nil, d.fail(n, path, "Identifier without a name")
		}
		return &Identifier{Start: pos, Name: name}, nil

	case "Literal":
		return d.literal(o, pos)

	case "NumericLiteral", "NumberLiteral", "Number":
		f, err := d.number(o.fields["value"], path)
		if err != nil {
			return nil, err
		}
		return &NumberLiteral{Start: pos, Value: f}, nil

	case "StringLiteral", "String":
		return &StringLiteral{Start: pos, Value: o.str("value")}, nil

	case "BooleanLiteral", "Boolean":
		return &BooleanLiteral{Start: pos, Value: o.flag("value")}, nil

	case "NullLiteral", "Null":
		return &NullLiteral{Start: pos}, nil

	case "UndefinedLiteral", "Undefined":
		return &UndefinedLiteral{Start: pos}, nil

	case "RegExpLiteral":
		return &RegExpLiteral{Start: pos, Pattern: o.str("pattern"), Flags: o.str("flags")}, nil

	case "BigIntLiteral":
		return &BigIntLiteral{Start: pos, Value: o.str("value")}, nil

	case "ThisExpression", "This":
		return &ThisExpression{Start: pos}, nil

	case "ArrayExpression", "ArrayLiteral":
		elems, err := d.expressions(o, "elements")
		if err != nil {
			return nil, err
		}
		return &ArrayLiteral{Start: pos, Elements: elems}, nil

	case "ObjectExpression", "ObjectLiteral":
		items, err := d.list(o, "properties")
		if err != nil {
			return nil, err
		}
		lit := &ObjectLiteral{Start: pos}
		for i, item := range items {
			p, err := d.property(item, fmt.Sprintf("%s/properties/%d", path, i))
			if err != nil {
				return nil, err
			}
			lit.Properties = append(lit.Properties, p)
		}
		return lit, nil

	case "BinaryExpression", "LogicalExpression", "AssignmentExpression":
		left, err := d.reqExpression(o, "left")
		if err != nil {
			return nil, err
		}
		right, err := d.reqExpression(o, "right")
		if err != nil {
			return nil, err
		}
		op := o.str("operator")
		switch t {
		case "BinaryExpression":
			return &BinaryExpression{Start: pos, Operator: op, Left: left, Right: right}, nil
		case "LogicalExpression":
			return &LogicalExpression{Start: pos, Operator: op, Left: left, Right: right}, nil
		default:
			if op == "" {
				op = "="
			}
			return &AssignmentExpression{Start: pos, Operator: op, Left: left, Right: right}, nil
		}

	case "UnaryExpression", "UpdateExpression":
		arg, err := d.reqExpression(o, "argument")
		if err != nil {
			return nil, err
		}
		prefix := true
		if _, ok := o.fields["prefix"]; ok {
			prefix = o.flag("prefix")
		}
		if t == "UnaryExpression" {
			return &UnaryExpression{Start: pos, Operator: o.str("operator"), Argument: arg, Prefix: prefix}, nil
		}
		return &UpdateExpression{Start: pos, Operator: o.str("operator"), Argument: arg, Prefix: prefix}, nil

	case "ConditionalExpression":
		test, err := d.reqExpression(o, "test")
		if err != nil {
			return nil, err
		}
		cons, err := d.reqExpression(o, "consequent")
		if err != nil {
			return nil, err
		}
		alt, err := d.reqExpression(o, "alternate")
		if err != nil {
			return nil, err
		}
		return &ConditionalExpression{Start: pos, Test: test, Consequent: cons, Alternate: alt}, nil

	case "SequenceExpression":
		exprs, err := d.expressions(o, "expressions")
		if err != nil {
			return nil, err
		}
		return &SequenceExpression{Start: pos, Expressions: exprs}, nil

	case "CallExpression", "NewExpression":
		callee, err := d.reqExpression(o, "callee")
		if err != nil {
			return nil, err
		}
		args, err := d.expressions(o, "arguments")
		if err != nil {
			return nil, err
		}
		if t == "NewExpression" {
			return &NewExpression{Start: pos, Callee: callee, Arguments: args}, nil
		}
		return &CallExpression{Start: pos, Callee: callee, Arguments: args, Optional: o.flag("optional")}, nil

	case "MemberExpression":
		obj, err := d.reqExpression(o, "object")
		if err != nil {
			return nil, err
		}
		prop, err := d.reqExpression(o, "property")
		if err != nil {
			return nil, err
		}
		return &MemberExpression{Start: pos, Object: obj, Property: prop,
			Computed: o.flag("computed"), Optional: o.flag("optional")}, nil

	case "FunctionExpression":
		id, err := d.optIdent(o, "id")
		if err != nil {
			return nil, err
		}
		params, err := d.expressions(o, "params")
		if err != nil {
			return nil, err
		}
		body, err := d.block(o, "body")
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = &BlockStatement{Start: pos}
		}
		return &FunctionExpression{Start: pos, ID: id, Params: params, Body: body,
			Generator: o.flag("generator"), Async: o.flag("async")}, nil

	case "ArrowFunctionExpression":
		params, err := d.expressions(o, "params")
		if err != nil {
			return nil, err
		}
		bv, ok := o.fields["body"]
		if !ok || isNull(bv) {
			return nil, d.fail(n, path, "ArrowFunctionExpression: missing \"body\"")
		}
		bo, err := d.object(bv, path+"/body")
		if err != nil {
			return nil, err
		}
		arrow := &ArrowFunctionExpression{Start: pos, Params: params, Async: o.flag("async")}
		if bo.typ() == "BlockStatement" {
			arrow.Body, err = d.statement(bv, path+"/body")
		} else {
			arrow.ExprBody = true
			arrow.Body, err = d.expression(bv, path+"/body")
		}
		if err != nil {
			return nil, err
		}
		return arrow, nil

	case "TemplateLiteral":
		exprs, err := d.expressions(o, "expressions")
		if err != nil {
			return nil, err
		}
		quasis, err := d.list(o, "quasis")
		if err != nil {
			return nil, err
		}
		tl := &TemplateLiteral{Start: pos, Expressions: exprs}
		for i, q := range quasis {
			qo, err := d.object(q, fmt.Sprintf("%s/quasis/%d", path, i))
			if err != nil {
				return nil, err
			}
			var cooked string
			if v, ok := qo.fields["value"]; ok && v.Kind == yaml.MappingNode {
				vo, _ := d.object(v, qo.path+"/value")
				cooked = vo.str("cooked")
			}
			tl.Quasis = append(tl.Quasis, cooked)
		}
		return tl, nil

	case "SpreadElement", "YieldExpression", "AwaitExpression":
		arg, err := d.optExpression(o, "argument")
		if err != nil {
			return nil, err
		}
		switch t {
		case "SpreadElement":
			return &SpreadElement{Start: pos, Argument: arg}, nil
		case "YieldExpression":
			return &YieldExpression{Start: pos, Argument: arg, Delegate: o.flag("delegate")}, nil
		}
		return &AwaitExpression{Start: pos, Argument: arg}, nil

	case "":
		return nil, d.fail(n, path, "node has no type")
	default:
		return nil, d.fail(n, path, "unknown expression type %q", t)
	}
}

func (d *decoder) property(n *yaml.Node, path string) (*Property, error) {
	o, err := d.object(n, path)
	if err != nil {
		return nil, err
	}
	switch o.typ() {
	case "Property", "ObjectProperty", "ObjectMethod":
	default:
		return nil, d.fail(n, path, "expected a Property, got %q", o.typ())
	}
	key, err := d.reqExpression(o, "key")
	if err != nil {
		return nil, err
	}
	value, err := d.optExpression(o, "value")
	if err != nil {
		return nil, err
	}
	if value == nil {
		// Shorthand `{x}` may omit the value.
		value = key
	}
	kind := o.str("kind")
	if kind == "" || kind == "method" {
		kind = "init"
	}
	return &Property{
		Start:     o.pos(),
		Key:       key,
		Value:     value,
		Computed:  o.flag("computed"),
		Shorthand: o.flag("shorthand"),
		Method:    o.flag("method") || o.typ() == "ObjectMethod",
		PropKind:  kind,
	}, nil
}

// literal decodes the ESTree generic Literal by the YAML type of its value.
func (d *decoder) literal(o *object, pos Position) (Expression, error) {
	if re, ok := o.fields["regex"]; ok && re.Kind == yaml.MappingNode {
		ro, err := d.object(re, o.path+"/regex")
		if err != nil {
			return nil, err
		}
		return &RegExpLiteral{Start: pos, Pattern: ro.str("pattern"), Flags: ro.str("flags")}, nil
	}
	if big := o.str("bigint"); big != "" {
		return &BigIntLiteral{Start: pos, Value: big}, nil
	}
	v, ok := o.fields["value"]
	if !ok || isNull(v) {
		return &NullLiteral{Start: pos}, nil
	}
	if v.Kind != yaml.ScalarNode {
		return nil, d.fail(v, o.path+"/value", "literal value must be a scalar")
	}
	switch v.Tag {
	case "!!bool":
		return &BooleanLiteral{Start: pos, Value: o.flag("value")}, nil
	case "!!int", "!!float":
		f, err := d.number(v, o.path+"/value")
		if err != nil {
			return nil, err
		}
		return &NumberLiteral{Start: pos, Value: f}, nil
	default:
		return &StringLiteral{Start: pos, Value: v.Value}, nil
	}
}

func (d *decoder) number(v *yaml.Node, path string) (float64, error) {
	if v == nil || v.Kind != yaml.ScalarNode {
		return 0, d.fail(v, path, "expected a number")
	}
	var f float64
	if err := v.Decode(&f); err != nil {
		return 0, d.fail(v, path, "invalid number %q", v.Value)
	}
	return f, nil
}
