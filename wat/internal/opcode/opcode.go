// Package opcode maps WAT instruction names to their binary opcodes.
package opcode

import "github.com/forgelab/wasmforge/wasm"

// Info describes one named instruction. NaturalAlign is the default
// alignment exponent for memory instructions, zero otherwise.
type Info struct {
	Opcode       byte
	NaturalAlign uint32
	HasMemarg    bool
}

// Lookup resolves a WAT instruction name.
func Lookup(name string) (Info, bool) {
	info, ok := table[name]
	return info, ok
}

var table = map[string]Info{
	// Control
	"unreachable": {Opcode: wasm.OpUnreachable},
	"nop":         {Opcode: wasm.OpNop},
	"return":      {Opcode: wasm.OpReturn},
	"br":          {Opcode: wasm.OpBr},
	"br_if":       {Opcode: wasm.OpBrIf},
	"br_table":    {Opcode: wasm.OpBrTable},
	"call":        {Opcode: wasm.OpCall},

	// Parametric
	"drop":   {Opcode: wasm.OpDrop},
	"select": {Opcode: wasm.OpSelect},

	// Variables
	"local.get":  {Opcode: wasm.OpLocalGet},
	"local.set":  {Opcode: wasm.OpLocalSet},
	"local.tee":  {Opcode: wasm.OpLocalTee},
	"global.get": {Opcode: wasm.OpGlobalGet},
	"global.set": {Opcode: wasm.OpGlobalSet},

	// Memory
	"i32.load":     {Opcode: wasm.OpI32Load, NaturalAlign: 2, HasMemarg: true},
	"i64.load":     {Opcode: wasm.OpI64Load, NaturalAlign: 3, HasMemarg: true},
	"f32.load":     {Opcode: wasm.OpF32Load, NaturalAlign: 2, HasMemarg: true},
	"f64.load":     {Opcode: wasm.OpF64Load, NaturalAlign: 3, HasMemarg: true},
	"i32.load8_s":  {Opcode: wasm.OpI32Load8S, NaturalAlign: 0, HasMemarg: true},
	"i32.load8_u":  {Opcode: wasm.OpI32Load8U, NaturalAlign: 0, HasMemarg: true},
	"i32.load16_s": {Opcode: wasm.OpI32Load16S, NaturalAlign: 1, HasMemarg: true},
	"i32.load16_u": {Opcode: wasm.OpI32Load16U, NaturalAlign: 1, HasMemarg: true},
	"i32.store":    {Opcode: wasm.OpI32Store, NaturalAlign: 2, HasMemarg: true},
	"i64.store":    {Opcode: wasm.OpI64Store, NaturalAlign: 3, HasMemarg: true},
	"f32.store":    {Opcode: wasm.OpF32Store, NaturalAlign: 2, HasMemarg: true},
	"f64.store":    {Opcode: wasm.OpF64Store, NaturalAlign: 3, HasMemarg: true},
	"i32.store8":   {Opcode: wasm.OpI32Store8, NaturalAlign: 0, HasMemarg: true},
	"i32.store16":  {Opcode: wasm.OpI32Store16, NaturalAlign: 1, HasMemarg: true},
	"memory.size":  {Opcode: wasm.OpMemorySize},
	"memory.grow":  {Opcode: wasm.OpMemoryGrow},

	// Constants
	"i32.const": {Opcode: wasm.OpI32Const},
	"i64.const": {Opcode: wasm.OpI64Const},
	"f32.const": {Opcode: wasm.OpF32Const},
	"f64.const": {Opcode: wasm.OpF64Const},

	// i32 comparison
	"i32.eqz":  {Opcode: wasm.OpI32Eqz},
	"i32.eq":   {Opcode: wasm.OpI32Eq},
	"i32.ne":   {Opcode: wasm.OpI32Ne},
	"i32.lt_s": {Opcode: wasm.OpI32LtS},
	"i32.lt_u": {Opcode: wasm.OpI32LtU},
	"i32.gt_s": {Opcode: wasm.OpI32GtS},
	"i32.gt_u": {Opcode: wasm.OpI32GtU},
	"i32.le_s": {Opcode: wasm.OpI32LeS},
	"i32.le_u": {Opcode: wasm.OpI32LeU},
	"i32.ge_s": {Opcode: wasm.OpI32GeS},
	"i32.ge_u": {Opcode: wasm.OpI32GeU},

	// i64 comparison
	"i64.eqz":  {Opcode: wasm.OpI64Eqz},
	"i64.eq":   {Opcode: wasm.OpI64Eq},
	"i64.ne":   {Opcode: wasm.OpI64Ne},
	"i64.lt_s": {Opcode: wasm.OpI64LtS},
	"i64.lt_u": {Opcode: wasm.OpI64LtU},
	"i64.gt_s": {Opcode: wasm.OpI64GtS},
	"i64.gt_u": {Opcode: wasm.OpI64GtU},
	"i64.le_s": {Opcode: wasm.OpI64LeS},
	"i64.le_u": {Opcode: wasm.OpI64LeU},
	"i64.ge_s": {Opcode: wasm.OpI64GeS},
	"i64.ge_u": {Opcode: wasm.OpI64GeU},

	// f32 comparison
	"f32.eq": {Opcode: wasm.OpF32Eq},
	"f32.ne": {Opcode: wasm.OpF32Ne},
	"f32.lt": {Opcode: wasm.OpF32Lt},
	"f32.gt": {Opcode: wasm.OpF32Gt},
	"f32.le": {Opcode: wasm.OpF32Le},
	"f32.ge": {Opcode: wasm.OpF32Ge},

	// f64 comparison
	"f64.eq": {Opcode: wasm.OpF64Eq},
	"f64.ne": {Opcode: wasm.OpF64Ne},
	"f64.lt": {Opcode: wasm.OpF64Lt},
	"f64.gt": {Opcode: wasm.OpF64Gt},
	"f64.le": {Opcode: wasm.OpF64Le},
	"f64.ge": {Opcode: wasm.OpF64Ge},

	// i32 arithmetic
	"i32.clz":    {Opcode: wasm.OpI32Clz},
	"i32.ctz":    {Opcode: wasm.OpI32Ctz},
	"i32.popcnt": {Opcode: wasm.OpI32Popcnt},
	"i32.add":    {Opcode: wasm.OpI32Add},
	"i32.sub":    {Opcode: wasm.OpI32Sub},
	"i32.mul":    {Opcode: wasm.OpI32Mul},
	"i32.div_s":  {Opcode: wasm.OpI32DivS},
	"i32.div_u":  {Opcode: wasm.OpI32DivU},
	"i32.rem_s":  {Opcode: wasm.OpI32RemS},
	"i32.rem_u":  {Opcode: wasm.OpI32RemU},
	"i32.and":    {Opcode: wasm.OpI32And},
	"i32.or":     {Opcode: wasm.OpI32Or},
	"i32.xor":    {Opcode: wasm.OpI32Xor},
	"i32.shl":    {Opcode: wasm.OpI32Shl},
	"i32.shr_s":  {Opcode: wasm.OpI32ShrS},
	"i32.shr_u":  {Opcode: wasm.OpI32ShrU},
	"i32.rotl":   {Opcode: wasm.OpI32Rotl},
	"i32.rotr":   {Opcode: wasm.OpI32Rotr},

	// i64 arithmetic
	"i64.clz":    {Opcode: wasm.OpI64Clz},
	"i64.ctz":    {Opcode: wasm.OpI64Ctz},
	"i64.popcnt": {Opcode: wasm.OpI64Popcnt},
	"i64.add":    {Opcode: wasm.OpI64Add},
	"i64.sub":    {Opcode: wasm.OpI64Sub},
	"i64.mul":    {Opcode: wasm.OpI64Mul},
	"i64.div_s":  {Opcode: wasm.OpI64DivS},
	"i64.div_u":  {Opcode: wasm.OpI64DivU},
	"i64.rem_s":  {Opcode: wasm.OpI64RemS},
	"i64.rem_u":  {Opcode: wasm.OpI64RemU},
	"i64.and":    {Opcode: wasm.OpI64And},
	"i64.or":     {Opcode: wasm.OpI64Or},
	"i64.xor":    {Opcode: wasm.OpI64Xor},
	"i64.shl":    {Opcode: wasm.OpI64Shl},
	"i64.shr_s":  {Opcode: wasm.OpI64ShrS},
	"i64.shr_u":  {Opcode: wasm.OpI64ShrU},
	"i64.rotl":   {Opcode: wasm.OpI64Rotl},
	"i64.rotr":   {Opcode: wasm.OpI64Rotr},

	// f32 arithmetic
	"f32.abs":      {Opcode: wasm.OpF32Abs},
	"f32.neg":      {Opcode: wasm.OpF32Neg},
	"f32.ceil":     {Opcode: wasm.OpF32Ceil},
	"f32.floor":    {Opcode: wasm.OpF32Floor},
	"f32.trunc":    {Opcode: wasm.OpF32Trunc},
	"f32.nearest":  {Opcode: wasm.OpF32Nearest},
	"f32.sqrt":     {Opcode: wasm.OpF32Sqrt},
	"f32.add":      {Opcode: wasm.OpF32Add},
	"f32.sub":      {Opcode: wasm.OpF32Sub},
	"f32.mul":      {Opcode: wasm.OpF32Mul},
	"f32.div":      {Opcode: wasm.OpF32Div},
	"f32.min":      {Opcode: wasm.OpF32Min},
	"f32.max":      {Opcode: wasm.OpF32Max},
	"f32.copysign": {Opcode: wasm.OpF32Copysign},

	// f64 arithmetic
	"f64.abs":      {Opcode: wasm.OpF64Abs},
	"f64.neg":      {Opcode: wasm.OpF64Neg},
	"f64.ceil":     {Opcode: wasm.OpF64Ceil},
	"f64.floor":    {Opcode: wasm.OpF64Floor},
	"f64.trunc":    {Opcode: wasm.OpF64Trunc},
	"f64.nearest":  {Opcode: wasm.OpF64Nearest},
	"f64.sqrt":     {Opcode: wasm.OpF64Sqrt},
	"f64.add":      {Opcode: wasm.OpF64Add},
	"f64.sub":      {Opcode: wasm.OpF64Sub},
	"f64.mul":      {Opcode: wasm.OpF64Mul},
	"f64.div":      {Opcode: wasm.OpF64Div},
	"f64.min":      {Opcode: wasm.OpF64Min},
	"f64.max":      {Opcode: wasm.OpF64Max},
	"f64.copysign": {Opcode: wasm.OpF64Copysign},

	// Conversions
	"i32.wrap_i64":        {Opcode: wasm.OpI32WrapI64},
	"i32.trunc_f32_s":     {Opcode: wasm.OpI32TruncF32S},
	"i32.trunc_f32_u":     {Opcode: wasm.OpI32TruncF32U},
	"i32.trunc_f64_s":     {Opcode: wasm.OpI32TruncF64S},
	"i32.trunc_f64_u":     {Opcode: wasm.OpI32TruncF64U},
	"i64.extend_i32_s":    {Opcode: wasm.OpI64ExtendI32S},
	"i64.extend_i32_u":    {Opcode: wasm.OpI64ExtendI32U},
	"i64.trunc_f32_s":     {Opcode: wasm.OpI64TruncF32S},
	"i64.trunc_f32_u":     {Opcode: wasm.OpI64TruncF32U},
	"i64.trunc_f64_s":     {Opcode: wasm.OpI64TruncF64S},
	"i64.trunc_f64_u":     {Opcode: wasm.OpI64TruncF64U},
	"f32.convert_i32_s":   {Opcode: wasm.OpF32ConvI32S},
	"f32.convert_i32_u":   {Opcode: wasm.OpF32ConvI32U},
	"f32.convert_i64_s":   {Opcode: wasm.OpF32ConvI64S},
	"f32.convert_i64_u":   {Opcode: wasm.OpF32ConvI64U},
	"f32.demote_f64":      {Opcode: wasm.OpF32DemoteF64},
	"f64.convert_i32_s":   {Opcode: wasm.OpF64ConvI32S},
	"f64.convert_i32_u":   {Opcode: wasm.OpF64ConvI32U},
	"f64.convert_i64_s":   {Opcode: wasm.OpF64ConvI64S},
	"f64.convert_i64_u":   {Opcode: wasm.OpF64ConvI64U},
	"f64.promote_f32":     {Opcode: wasm.OpF64PromoteF32},
	"i32.reinterpret_f32": {Opcode: 0xBC},
	"i64.reinterpret_f64": {Opcode: 0xBD},
	"f32.reinterpret_i32": {Opcode: 0xBE},
	"f64.reinterpret_i64": {Opcode: 0xBF},
}
