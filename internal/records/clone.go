package records

import (
	"fmt"

	"github.com/ilforge/ilforge/internal/abi"
	"github.com/ilforge/ilforge/internal/ir"
)

// buildClone synthesizes the compiler-generated copy constructor surface:
// a reference-type record GC-allocates a new instance and copies every
// field; a value-type record has by-value semantics already, so Clone just
// returns the receiver unchanged (spec §4.7).
func (s *Synthesizer) buildClone(t *ir.Type) *ir.Method {
	self := selfParam(t)
	var instrs []ir.Instruction

	if t.IsValueType() {
		instrs = []ir.Instruction{
			&ir.ReturnInstr{Value: &ir.ParamOperand{Param: self}},
		}
	} else {
		dest := s.newTemp()
		instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
			"auto* %s = static_cast<%s>(%s(&TypeInfo_%s, sizeof(%s)));",
			dest.Name, self.DeclaredType, abi.GCAlloc, t.MangledName, t.MangledName,
		)})
		for _, f := range recordFields(t) {
			instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
				"%s->%s = self->%s;", dest.Name, f.MangledName, f.MangledName,
			)})
		}
		instrs = append(instrs, &ir.ReturnInstr{Value: &ir.TempOperand{Temp: dest}})
	}

	return &ir.Method{
		Name:         "Clone",
		MangledName:  t.MangledName + "__Clone",
		ReturnType:   self.DeclaredType,
		Params:       []*ir.Param{self},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}
