package records

import (
	"fmt"

	"github.com/ilforge/ilforge/internal/ir"
)

// buildGetHashCode synthesizes the field-chained GetHashCode: hash starts
// at 17 and accumulates hash = hash*31 + field-hash per field in
// declaration order (spec §4.7).
func (s *Synthesizer) buildGetHashCode(t *ir.Type) *ir.Method {
	fields := recordFields(t)

	hash := s.newTemp()
	instrs := []ir.Instruction{
		&ir.RawCppInstr{Text: fmt.Sprintf("int32_t %s = 17;", hash.Name)},
	}
	for _, f := range fields {
		next := s.newTemp()
		instrs = append(instrs, &ir.RawCppInstr{Text: fmt.Sprintf(
			"int32_t %s = %s * 31 + %s;", next.Name, hash.Name, fieldHashExpr(s.Mangler, f, "self"),
		)})
		hash = next
	}
	instrs = append(instrs, &ir.ReturnInstr{Value: &ir.TempOperand{Temp: hash}})

	return &ir.Method{
		Name:         "GetHashCode",
		MangledName:  t.MangledName + "__GetHashCode",
		ReturnType:   "int32_t",
		Params:       []*ir.Param{selfParam(t)},
		Blocks:       []*ir.BasicBlock{newBlock(instrs...)},
		Flags:        ir.MFlagVirtual,
		BodyConverted: true,
		OwningType:   t,
	}
}
