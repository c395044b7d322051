package bytecode

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Palette colors the parts of a disassembly listing. The zero value prints plain text.
type Palette struct {
	Header  *color.Color
	Opcode  *color.Color
	Operand *color.Color
	Comment *color.Color
}

// ColorPalette is used by the CLI when stdout is a terminal.
var ColorPalette = Palette{
	Header:  color.New(color.FgCyan, color.Bold),
	Opcode:  color.New(color.FgYellow),
	Operand: color.New(color.FgWhite),
	Comment: color.New(color.FgHiBlack),
}

func (p Palette) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

// Disassemble returns a human-readable representation of the unit and every
// function unit nested in its constant pool.
func Disassemble(u *Unit) string {
	return Palette{}.Disassemble(u)
}

// Disassemble renders u using the palette's colors.
func (p Palette) Disassemble(u *Unit) string {
	var sb strings.Builder
	p.disassembleUnit(&sb, u, "")
	return sb.String()
}

func (p Palette) disassembleUnit(sb *strings.Builder, u *Unit, indent string) {
	name := u.Name
	if name == "" {
		name = "<anonymous>"
	}
	sb.WriteString(indent + p.paint(p.Header, fmt.Sprintf("== %s ==", name)))
	sb.WriteString(p.paint(p.Comment, fmt.Sprintf(" (locals %d, constants %d)", u.LocalCount, len(u.Constants))))
	sb.WriteString("\n")

	for pc := range u.Instructions {
		p.disassembleInstruction(sb, u, pc, indent)
	}

	for _, c := range u.Constants {
		if c.Kind != ConstFunction || c.Function == nil || c.Function.Unit == nil {
			continue
		}
		sb.WriteString("\n")
		fn := c.Function
		for i, cp := range fn.Captures {
			sb.WriteString(indent + p.paint(p.Comment, fmt.Sprintf("; %s capture %d <- %s %d %s", fn.Inspect(), i, cp.Source, cp.Index, cp.Name)) + "\n")
		}
		p.disassembleUnit(sb, fn.Unit, indent+"    ")
	}
}

// DisassembleInstruction renders the instruction at pc on one line.
func DisassembleInstruction(u *Unit, pc int) string {
	var sb strings.Builder
	Palette{}.disassembleInstruction(&sb, u, pc, "")
	return strings.TrimRight(sb.String(), "\n")
}

func (p Palette) disassembleInstruction(sb *strings.Builder, u *Unit, pc int, indent string) {
	sb.WriteString(indent)
	sb.WriteString(fmt.Sprintf("%04d ", pc))

	// Print line number
	line := u.LineAt(pc)
	if pc > 0 && line == u.LineAt(pc-1) {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", line))
	}

	in := u.Instructions[pc]
	switch in.Op.Operand() {
	case OperandNone:
		simpleInstruction(sb, p, in)
	case OperandConst:
		constantInstruction(sb, p, u, in)
	case OperandName:
		nameInstruction(sb, p, in)
	case OperandTarget:
		jumpInstruction(sb, p, in)
	default:
		operandInstruction(sb, p, in)
	}
}

func simpleInstruction(sb *strings.Builder, p Palette, in Instruction) {
	sb.WriteString(p.paint(p.Opcode, in.Op.String()))
	sb.WriteString("\n")
}

func constantInstruction(sb *strings.Builder, p Palette, u *Unit, in Instruction) {
	sb.WriteString(p.paint(p.Opcode, fmt.Sprintf("%-18s", in.Op)))
	sb.WriteString(p.paint(p.Operand, fmt.Sprintf(" %4d", in.Operand)))
	if in.Operand >= 0 && in.Operand < len(u.Constants) {
		sb.WriteString(p.paint(p.Comment, fmt.Sprintf(" '%s'", u.Constants[in.Operand].Inspect())))
	} else {
		sb.WriteString(p.paint(p.Comment, " (invalid)"))
	}
	sb.WriteString("\n")
}

func nameInstruction(sb *strings.Builder, p Palette, in Instruction) {
	sb.WriteString(p.paint(p.Opcode, fmt.Sprintf("%-18s", in.Op)))
	sb.WriteString(p.paint(p.Operand, fmt.Sprintf(" %s", in.Name)))
	sb.WriteString("\n")
}

func operandInstruction(sb *strings.Builder, p Palette, in Instruction) {
	sb.WriteString(p.paint(p.Opcode, fmt.Sprintf("%-18s", in.Op)))
	sb.WriteString(p.paint(p.Operand, fmt.Sprintf(" %4d", in.Operand)))
	sb.WriteString("\n")
}

func jumpInstruction(sb *strings.Builder, p Palette, in Instruction) {
	sb.WriteString(p.paint(p.Opcode, fmt.Sprintf("%-18s", in.Op)))
	sb.WriteString(p.paint(p.Operand, fmt.Sprintf(" -> %04d", in.Operand)))
	sb.WriteString("\n")
}
