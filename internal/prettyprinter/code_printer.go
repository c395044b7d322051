// Package prettyprinter renders AST trees as JavaScript source text.
package prettyprinter

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/wendelmax/jsvm/internal/ast"
	"github.com/wendelmax/jsvm/internal/heap"
)

// --- Code Printer (Output looks like source code) ---

// Operator precedence (higher = binds tighter)
var operatorPrecedence = map[string]int{
	"??":         4,
	"||":         4,
	"&&":         5,
	"|":          6,
	"^":          7,
	"&":          8,
	"==":         9,
	"!=":         9,
	"===":        9,
	"!==":        9,
	"<":          10,
	">":          10,
	"<=":         10,
	">=":         10,
	"instanceof": 10,
	"in":         10,
	"<<":         11,
	">>":         11,
	">>>":        11,
	"+":          12,
	"-":          12,
	"*":          13,
	"/":          13,
	"%":          13,
	"**":         14, // right-assoc
}

const (
	precSequence    = 1
	precAssignment  = 2
	precConditional = 3
	precUnary       = 15
	precUpdate      = 16
	precCall        = 17
	precMember      = 18
	precPrimary     = 20
)

func getPrecedence(op string) int {
	if p, ok := operatorPrecedence[op]; ok {
		return p
	}
	return precUnary - 1 // Unknown binary operators bind loosely
}

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{}
}

// Print renders a program, statement or expression.
func Print(node ast.Node) string {
	p := NewCodePrinter()
	switch n := node.(type) {
	case *ast.Program:
		p.PrintProgram(n)
	case ast.Statement:
		p.printStatement(n)
	case ast.Expression:
		p.printExpr(n, precSequence)
	default:
		p.write("<" + node.Kind() + ">")
	}
	return p.buf.String()
}

// PrintProgram renders every top-level statement on its own line.
func (p *CodePrinter) PrintProgram(prog *ast.Program) string {
	for i, stmt := range prog.Body {
		if i > 0 {
			p.newline()
		}
		p.printStatement(stmt)
	}
	if len(prog.Body) > 0 {
		p.newline()
	}
	return p.buf.String()
}

func (p *CodePrinter) write(s string) { p.buf.WriteString(s) }

func (p *CodePrinter) newline() { p.buf.WriteByte('\n') }

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

// --- Statements ---

func (p *CodePrinter) printStatement(stmt ast.Statement) {
	p.writeIndent()
	p.printStatementBody(stmt)
}

// printStatementBody prints stmt assuming indentation is already written.
func (p *CodePrinter) printStatementBody(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		if startsAmbiguously(s.Expression) {
			p.write("(")
			p.printExpr(s.Expression, precSequence)
			p.write(")")
		} else {
			p.printExpr(s.Expression, precSequence)
		}
		p.write(";")
	case *ast.VariableDeclaration:
		p.printDeclaration(s)
		p.write(";")
	case *ast.FunctionDeclaration:
		p.printFunction("function", s.ID, s.Params, s.Body, s.Async, s.Generator)
	case *ast.ClassDeclaration:
		p.write("class")
		if s.ID != nil {
			p.write(" " + s.ID.Name)
		}
		if s.SuperClass != nil {
			p.write(" extends ")
			p.printExpr(s.SuperClass, precCall)
		}
		p.write(" {}")
	case *ast.BlockStatement:
		p.printBlock(s)
	case *ast.EmptyStatement:
		p.write(";")
	case *ast.IfStatement:
		p.write("if (")
		p.printExpr(s.Test, precSequence)
		p.write(")")
		p.printBody(s.Consequent)
		if s.Alternate != nil {
			if _, ok := s.Consequent.(*ast.BlockStatement); ok {
				p.write(" else")
			} else {
				p.newline()
				p.writeIndent()
				p.write("else")
			}
			if elseIf, ok := s.Alternate.(*ast.IfStatement); ok {
				p.write(" ")
				p.printStatementBody(elseIf)
			} else {
				p.printBody(s.Alternate)
			}
		}
	case *ast.WhileStatement:
		p.write("while (")
		p.printExpr(s.Test, precSequence)
		p.write(")")
		p.printBody(s.Body)
	case *ast.DoWhileStatement:
		p.write("do")
		p.printBody(s.Body)
		if _, ok := s.Body.(*ast.BlockStatement); ok {
			p.write(" ")
		} else {
			p.newline()
			p.writeIndent()
		}
		p.write("while (")
		p.printExpr(s.Test, precSequence)
		p.write(");")
	case *ast.ForStatement:
		p.write("for (")
		switch init := s.Init.(type) {
		case nil:
		case *ast.VariableDeclaration:
			p.printDeclaration(init)
		case *ast.ExpressionStatement:
			p.printExpr(init.Expression, precSequence)
		default:
			p.printStatementBody(init)
		}
		p.write(";")
		if s.Test != nil {
			p.write(" ")
			p.printExpr(s.Test, precSequence)
		}
		p.write(";")
		if s.Update != nil {
			p.write(" ")
			p.printExpr(s.Update, precSequence)
		}
		p.write(")")
		p.printBody(s.Body)
	case *ast.ReturnStatement:
		p.write("return")
		if s.Argument != nil {
			p.write(" ")
			p.printExpr(s.Argument, precSequence)
		}
		p.write(";")
	case *ast.BreakStatement:
		p.write("break" + labelSuffix(s.Label) + ";")
	case *ast.ContinueStatement:
		p.write("continue" + labelSuffix(s.Label) + ";")
	case *ast.ThrowStatement:
		p.write("throw ")
		p.printExpr(s.Argument, precSequence)
		p.write(";")
	case *ast.LabeledStatement:
		p.write(s.Label.Name + ": ")
		p.printStatementBody(s.Body)
	case *ast.SwitchStatement:
		p.write("switch (")
		p.printExpr(s.Discriminant, precSequence)
		p.write(") {")
		p.indent++
		for _, c := range s.Cases {
			p.newline()
			p.writeIndent()
			if c.Test == nil {
				p.write("default:")
			} else {
				p.write("case ")
				p.printExpr(c.Test, precSequence)
				p.write(":")
			}
			p.indent++
			for _, stmt := range c.Consequent {
				p.newline()
				p.printStatement(stmt)
			}
			p.indent--
		}
		p.indent--
		p.newline()
		p.writeIndent()
		p.write("}")
	case *ast.TryStatement:
		p.write("try ")
		p.printBlock(s.Block)
		if s.Handler != nil {
			p.write(" catch ")
			if s.Handler.Param != nil {
				p.write("(")
				p.printExpr(s.Handler.Param, precSequence)
				p.write(") ")
			}
			p.printBlock(s.Handler.Body)
		}
		if s.Finalizer != nil {
			p.write(" finally ")
			p.printBlock(s.Finalizer)
		}
	default:
		p.write("/* " + stmt.Kind() + " */")
	}
}

func labelSuffix(label *ast.Identifier) string {
	if label == nil {
		return ""
	}
	return " " + label.Name
}

func (p *CodePrinter) printDeclaration(d *ast.VariableDeclaration) {
	p.write(d.DeclKind + " ")
	for i, decl := range d.Declarations {
		if i > 0 {
			p.write(", ")
		}
		p.printExpr(decl.ID, precPrimary)
		if decl.Init != nil {
			p.write(" = ")
			p.printExpr(decl.Init, precAssignment)
		}
	}
}

func (p *CodePrinter) printBlock(b *ast.BlockStatement) {
	if b == nil || len(b.Body) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.indent++
	for _, stmt := range b.Body {
		p.newline()
		p.printStatement(stmt)
	}
	p.indent--
	p.newline()
	p.writeIndent()
	p.write("}")
}

// printBody prints a loop or branch body: blocks on the same line, other
// statements indented on the next one.
func (p *CodePrinter) printBody(stmt ast.Statement) {
	if b, ok := stmt.(*ast.BlockStatement); ok {
		p.write(" ")
		p.printBlock(b)
		return
	}
	p.indent++
	p.newline()
	p.printStatement(stmt)
	p.indent--
}

func (p *CodePrinter) printFunction(keyword string, id *ast.Identifier, params []ast.Expression, body *ast.BlockStatement, async, generator bool) {
	if async {
		p.write("async ")
	}
	p.write(keyword)
	if generator {
		p.write("*")
	}
	p.write(" ")
	if id != nil {
		p.write(id.Name)
	}
	p.printParams(params)
	p.write(" ")
	p.printBlock(body)
}

func (p *CodePrinter) printParams(params []ast.Expression) {
	p.write("(")
	p.printList(params, precAssignment)
	p.write(")")
}

func (p *CodePrinter) printList(exprs []ast.Expression, prec int) {
	for i, e := range exprs {
		if i > 0 {
			p.write(", ")
		}
		if e != nil {
			p.printExpr(e, prec)
		}
	}
}

// --- Expressions ---

// precedence returns how tightly expr binds.
func precedence(expr ast.Expression) int {
	switch e := expr.(type) {
	case *ast.SequenceExpression:
		return precSequence
	case *ast.AssignmentExpression, *ast.ArrowFunctionExpression, *ast.YieldExpression:
		return precAssignment
	case *ast.ConditionalExpression:
		return precConditional
	case *ast.BinaryExpression:
		return getPrecedence(e.Operator)
	case *ast.LogicalExpression:
		return getPrecedence(e.Operator)
	case *ast.UnaryExpression, *ast.AwaitExpression:
		return precUnary
	case *ast.UpdateExpression:
		return precUpdate
	case *ast.CallExpression:
		return precCall
	case *ast.NewExpression, *ast.MemberExpression:
		return precMember
	case *ast.NumberLiteral:
		if math.Signbit(e.Value) {
			return precUnary
		}
	}
	return precPrimary
}

// printExpr prints an expression, adding parentheses only if needed
func (p *CodePrinter) printExpr(expr ast.Expression, parentPrec int) {
	if expr == nil {
		p.write("<???>")
		return
	}
	needParens := precedence(expr) < parentPrec
	if needParens {
		p.write("(")
	}
	p.printExprBody(expr)
	if needParens {
		p.write(")")
	}
}

func (p *CodePrinter) printExprBody(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Identifier:
		p.write(e.Name)
	case *ast.NumberLiteral:
		if e.Value == 0 && math.Signbit(e.Value) {
			p.write("-0")
		} else {
			p.write(heap.NumberToString(e.Value))
		}
	case *ast.StringLiteral:
		p.write(quote(e.Value))
	case *ast.BooleanLiteral:
		p.write(fmt.Sprint(e.Value))
	case *ast.NullLiteral:
		p.write("null")
	case *ast.UndefinedLiteral:
		p.write("undefined")
	case *ast.RegExpLiteral:
		p.write("/" + e.Pattern + "/" + e.Flags)
	case *ast.BigIntLiteral:
		p.write(e.Value + "n")
	case *ast.ThisExpression:
		p.write("this")
	case *ast.ArrayLiteral:
		p.write("[")
		p.printList(e.Elements, precAssignment)
		if n := len(e.Elements); n > 0 && e.Elements[n-1] == nil {
			p.write(",") // trailing hole
		}
		p.write("]")
	case *ast.ObjectLiteral:
		p.printObject(e)
	case *ast.BinaryExpression:
		p.printInfix(e.Operator, e.Left, e.Right)
	case *ast.LogicalExpression:
		p.printInfix(e.Operator, e.Left, e.Right)
	case *ast.UnaryExpression:
		p.write(e.Operator)
		if isWordOperator(e.Operator) || startsWithSign(e.Operator, e.Argument) {
			p.write(" ")
		}
		p.printExpr(e.Argument, precUnary)
	case *ast.UpdateExpression:
		if e.Prefix {
			p.write(e.Operator)
			p.printExpr(e.Argument, precUnary)
		} else {
			p.printExpr(e.Argument, precCall)
			p.write(e.Operator)
		}
	case *ast.AssignmentExpression:
		p.printExpr(e.Left, precCall)
		p.write(" " + e.Operator + " ")
		p.printExpr(e.Right, precAssignment)
	case *ast.ConditionalExpression:
		p.printExpr(e.Test, precConditional+1)
		p.write(" ? ")
		p.printExpr(e.Consequent, precAssignment)
		p.write(" : ")
		p.printExpr(e.Alternate, precAssignment)
	case *ast.SequenceExpression:
		p.printList(e.Expressions, precAssignment)
	case *ast.CallExpression:
		p.printExpr(e.Callee, precCall)
		if e.Optional {
			p.write("?.")
		}
		p.printParams(e.Arguments)
	case *ast.NewExpression:
		p.write("new ")
		if _, isCall := e.Callee.(*ast.CallExpression); isCall {
			p.write("(")
			p.printExpr(e.Callee, precSequence)
			p.write(")")
		} else {
			p.printExpr(e.Callee, precMember)
		}
		p.printParams(e.Arguments)
	case *ast.MemberExpression:
		if _, isNum := e.Object.(*ast.NumberLiteral); isNum {
			p.write("(")
			p.printExpr(e.Object, precSequence)
			p.write(")")
		} else {
			p.printExpr(e.Object, precCall)
		}
		if e.Optional {
			p.write("?.")
		}
		if e.Computed {
			p.write("[")
			p.printExpr(e.Property, precSequence)
			p.write("]")
		} else {
			if !e.Optional {
				p.write(".")
			}
			p.printExpr(e.Property, precPrimary)
		}
	case *ast.FunctionExpression:
		p.printFunction("function", e.ID, e.Params, e.Body, e.Async, e.Generator)
	case *ast.ArrowFunctionExpression:
		if e.Async {
			p.write("async ")
		}
		p.printParams(e.Params)
		p.write(" => ")
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			p.printBlock(body)
		case ast.Expression:
			if _, isObj := body.(*ast.ObjectLiteral); isObj {
				p.write("(")
				p.printExpr(body, precSequence)
				p.write(")")
			} else {
				p.printExpr(body, precAssignment)
			}
		}
	case *ast.TemplateLiteral:
		p.write("`")
		for i, q := range e.Quasis {
			p.write(q)
			if i < len(e.Expressions) {
				p.write("${")
				p.printExpr(e.Expressions[i], precSequence)
				p.write("}")
			}
		}
		p.write("`")
	case *ast.SpreadElement:
		p.write("...")
		p.printExpr(e.Argument, precAssignment)
	case *ast.YieldExpression:
		p.write("yield")
		if e.Delegate {
			p.write("*")
		}
		if e.Argument != nil {
			p.write(" ")
			p.printExpr(e.Argument, precAssignment)
		}
	case *ast.AwaitExpression:
		p.write("await ")
		p.printExpr(e.Argument, precUnary)
	default:
		p.write("/* " + expr.Kind() + " */")
	}
}

func (p *CodePrinter) printInfix(op string, left, right ast.Expression) {
	prec := getPrecedence(op)
	leftPrec, rightPrec := prec, prec+1
	if op == "**" {
		// Right-associative; a unary base needs parentheses.
		leftPrec, rightPrec = precUnary+1, prec
	}
	p.printExpr(left, leftPrec)
	p.write(" " + op + " ")
	p.printExpr(right, rightPrec)
}

func (p *CodePrinter) printObject(o *ast.ObjectLiteral) {
	if len(o.Properties) == 0 {
		p.write("{}")
		return
	}
	p.write("{ ")
	for i, prop := range o.Properties {
		if i > 0 {
			p.write(", ")
		}
		if prop.Shorthand {
			p.printExpr(prop.Value, precAssignment)
			continue
		}
		switch {
		case prop.Computed:
			p.write("[")
			p.printExpr(prop.Key, precAssignment)
			p.write("]")
		default:
			p.printExpr(prop.Key, precPrimary)
		}
		p.write(": ")
		p.printExpr(prop.Value, precAssignment)
	}
	p.write(" }")
}

func isWordOperator(op string) bool {
	return op == "typeof" || op == "void" || op == "delete"
}

// startsWithSign reports whether printing arg right after op would merge
// into another token, as in "- -x" or "+ ++x".
func startsWithSign(op string, arg ast.Expression) bool {
	if op != "-" && op != "+" {
		return false
	}
	switch a := arg.(type) {
	case *ast.UnaryExpression:
		return strings.HasPrefix(a.Operator, op)
	case *ast.UpdateExpression:
		return a.Prefix && strings.HasPrefix(a.Operator, op)
	}
	return false
}

// startsAmbiguously reports whether an expression statement would begin
// with "{" or "function" and be read as a block or declaration.
func startsAmbiguously(expr ast.Expression) bool {
	for {
		switch e := expr.(type) {
		case *ast.ObjectLiteral, *ast.FunctionExpression:
			return true
		case *ast.BinaryExpression:
			expr = e.Left
		case *ast.LogicalExpression:
			expr = e.Left
		case *ast.AssignmentExpression:
			expr = e.Left
		case *ast.ConditionalExpression:
			expr = e.Test
		case *ast.CallExpression:
			expr = e.Callee
		case *ast.MemberExpression:
			expr = e.Object
		case *ast.SequenceExpression:
			if len(e.Expressions) == 0 {
				return false
			}
			expr = e.Expressions[0]
		case *ast.UpdateExpression:
			if e.Prefix {
				return false
			}
			expr = e.Argument
		default:
			return false
		}
	}
}

// quote renders s as a double-quoted JavaScript string literal.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\v':
			sb.WriteString(`\v`)
		case '\u2028', '\u2029':
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
