package records

import "github.com/ilforge/ilforge/internal/ir"

// buildPrintMembers synthesizes the trivial PrintMembers override: the
// generated ToString does its own formatting directly (tostring.go), so
// this hook is a no-op required only to satisfy the virtual slot a
// user-declared `partial` PrintMembers would otherwise fill (spec §4.7:
// "trivial PrintMembers (returns true)").
func (s *Synthesizer) buildPrintMembers(t *ir.Type) *ir.Method {
	instrs := []ir.Instruction{
		&ir.ReturnInstr{Value: &ir.LiteralOperand{Value: true, Type: "bool"}},
	}
	return &ir.Method{
		Name:         "PrintMembers",
		MangledName:  t.MangledName + "__PrintMembers",
		ReturnType:   "bool",
		Params:       []*ir.Param{selfParam(t), {Name: "builder", DeclaredType: "string_builder*"}},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}
