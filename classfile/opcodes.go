package classfile

import (
	"fmt"

	"github.com/chazu/cfx/desc"
)

// Opcode is a JVM instruction opcode. The wide prefix (0xC4) is not an
// Opcode: it is folded into the load, store, increment and ret instructions
// it modifies.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	OpNop             Opcode = 0x00
	OpAconstNull      Opcode = 0x01
	OpIconstM1        Opcode = 0x02
	OpIconst0         Opcode = 0x03
	OpIconst1         Opcode = 0x04
	OpIconst2         Opcode = 0x05
	OpIconst3         Opcode = 0x06
	OpIconst4         Opcode = 0x07
	OpIconst5         Opcode = 0x08
	OpLconst0         Opcode = 0x09
	OpLconst1         Opcode = 0x0A
	OpFconst0         Opcode = 0x0B
	OpFconst1         Opcode = 0x0C
	OpFconst2         Opcode = 0x0D
	OpDconst0         Opcode = 0x0E
	OpDconst1         Opcode = 0x0F
	OpBipush          Opcode = 0x10
	OpSipush          Opcode = 0x11
	OpLdc             Opcode = 0x12
	OpLdcW            Opcode = 0x13
	OpLdc2W           Opcode = 0x14

	// ========================================================================
	// Local loads (0x15-0x2D)
	// ========================================================================

	OpIload           Opcode = 0x15
	OpLload           Opcode = 0x16
	OpFload           Opcode = 0x17
	OpDload           Opcode = 0x18
	OpAload           Opcode = 0x19
	OpIload0          Opcode = 0x1A
	OpIload1          Opcode = 0x1B
	OpIload2          Opcode = 0x1C
	OpIload3          Opcode = 0x1D
	OpLload0          Opcode = 0x1E
	OpLload1          Opcode = 0x1F
	OpLload2          Opcode = 0x20
	OpLload3          Opcode = 0x21
	OpFload0          Opcode = 0x22
	OpFload1          Opcode = 0x23
	OpFload2          Opcode = 0x24
	OpFload3          Opcode = 0x25
	OpDload0          Opcode = 0x26
	OpDload1          Opcode = 0x27
	OpDload2          Opcode = 0x28
	OpDload3          Opcode = 0x29
	OpAload0          Opcode = 0x2A
	OpAload1          Opcode = 0x2B
	OpAload2          Opcode = 0x2C
	OpAload3          Opcode = 0x2D

	// ========================================================================
	// Array loads (0x2E-0x35)
	// ========================================================================

	OpIaload          Opcode = 0x2E
	OpLaload          Opcode = 0x2F
	OpFaload          Opcode = 0x30
	OpDaload          Opcode = 0x31
	OpAaload          Opcode = 0x32
	OpBaload          Opcode = 0x33
	OpCaload          Opcode = 0x34
	OpSaload          Opcode = 0x35

	// ========================================================================
	// Local stores (0x36-0x4E)
	// ========================================================================

	OpIstore          Opcode = 0x36
	OpLstore          Opcode = 0x37
	OpFstore          Opcode = 0x38
	OpDstore          Opcode = 0x39
	OpAstore          Opcode = 0x3A
	OpIstore0         Opcode = 0x3B
	OpIstore1         Opcode = 0x3C
	OpIstore2         Opcode = 0x3D
	OpIstore3         Opcode = 0x3E
	OpLstore0         Opcode = 0x3F
	OpLstore1         Opcode = 0x40
	OpLstore2         Opcode = 0x41
	OpLstore3         Opcode = 0x42
	OpFstore0         Opcode = 0x43
	OpFstore1         Opcode = 0x44
	OpFstore2         Opcode = 0x45
	OpFstore3         Opcode = 0x46
	OpDstore0         Opcode = 0x47
	OpDstore1         Opcode = 0x48
	OpDstore2         Opcode = 0x49
	OpDstore3         Opcode = 0x4A
	OpAstore0         Opcode = 0x4B
	OpAstore1         Opcode = 0x4C
	OpAstore2         Opcode = 0x4D
	OpAstore3         Opcode = 0x4E

	// ========================================================================
	// Array stores (0x4F-0x56)
	// ========================================================================

	OpIastore         Opcode = 0x4F
	OpLastore         Opcode = 0x50
	OpFastore         Opcode = 0x51
	OpDastore         Opcode = 0x52
	OpAastore         Opcode = 0x53
	OpBastore         Opcode = 0x54
	OpCastore         Opcode = 0x55
	OpSastore         Opcode = 0x56

	// ========================================================================
	// Stack manipulation (0x57-0x5F)
	// ========================================================================

	OpPop             Opcode = 0x57
	OpPop2            Opcode = 0x58
	OpDup             Opcode = 0x59
	OpDupX1           Opcode = 0x5A
	OpDupX2           Opcode = 0x5B
	OpDup2            Opcode = 0x5C
	OpDup2X1          Opcode = 0x5D
	OpDup2X2          Opcode = 0x5E
	OpSwap            Opcode = 0x5F

	// ========================================================================
	// Arithmetic and logic (0x60-0x84)
	// ========================================================================

	OpIadd            Opcode = 0x60
	OpLadd            Opcode = 0x61
	OpFadd            Opcode = 0x62
	OpDadd            Opcode = 0x63
	OpIsub            Opcode = 0x64
	OpLsub            Opcode = 0x65
	OpFsub            Opcode = 0x66
	OpDsub            Opcode = 0x67
	OpImul            Opcode = 0x68
	OpLmul            Opcode = 0x69
	OpFmul            Opcode = 0x6A
	OpDmul            Opcode = 0x6B
	OpIdiv            Opcode = 0x6C
	OpLdiv            Opcode = 0x6D
	OpFdiv            Opcode = 0x6E
	OpDdiv            Opcode = 0x6F
	OpIrem            Opcode = 0x70
	OpLrem            Opcode = 0x71
	OpFrem            Opcode = 0x72
	OpDrem            Opcode = 0x73
	OpIneg            Opcode = 0x74
	OpLneg            Opcode = 0x75
	OpFneg            Opcode = 0x76
	OpDneg            Opcode = 0x77
	OpIshl            Opcode = 0x78
	OpLshl            Opcode = 0x79
	OpIshr            Opcode = 0x7A
	OpLshr            Opcode = 0x7B
	OpIushr           Opcode = 0x7C
	OpLushr           Opcode = 0x7D
	OpIand            Opcode = 0x7E
	OpLand            Opcode = 0x7F
	OpIor             Opcode = 0x80
	OpLor             Opcode = 0x81
	OpIxor            Opcode = 0x82
	OpLxor            Opcode = 0x83
	OpIinc            Opcode = 0x84

	// ========================================================================
	// Conversions (0x85-0x93)
	// ========================================================================

	OpI2l             Opcode = 0x85
	OpI2f             Opcode = 0x86
	OpI2d             Opcode = 0x87
	OpL2i             Opcode = 0x88
	OpL2f             Opcode = 0x89
	OpL2d             Opcode = 0x8A
	OpF2i             Opcode = 0x8B
	OpF2l             Opcode = 0x8C
	OpF2d             Opcode = 0x8D
	OpD2i             Opcode = 0x8E
	OpD2l             Opcode = 0x8F
	OpD2f             Opcode = 0x90
	OpI2b             Opcode = 0x91
	OpI2c             Opcode = 0x92
	OpI2s             Opcode = 0x93

	// ========================================================================
	// Comparisons and branches (0x94-0xA9)
	// ========================================================================

	OpLcmp            Opcode = 0x94
	OpFcmpl           Opcode = 0x95
	OpFcmpg           Opcode = 0x96
	OpDcmpl           Opcode = 0x97
	OpDcmpg           Opcode = 0x98
	OpIfeq            Opcode = 0x99
	OpIfne            Opcode = 0x9A
	OpIflt            Opcode = 0x9B
	OpIfge            Opcode = 0x9C
	OpIfgt            Opcode = 0x9D
	OpIfle            Opcode = 0x9E
	OpIfIcmpeq        Opcode = 0x9F
	OpIfIcmpne        Opcode = 0xA0
	OpIfIcmplt        Opcode = 0xA1
	OpIfIcmpge        Opcode = 0xA2
	OpIfIcmpgt        Opcode = 0xA3
	OpIfIcmple        Opcode = 0xA4
	OpIfAcmpeq        Opcode = 0xA5
	OpIfAcmpne        Opcode = 0xA6
	OpGoto            Opcode = 0xA7
	OpJsr             Opcode = 0xA8
	OpRet             Opcode = 0xA9

	// ========================================================================
	// Switches and returns (0xAA-0xB1)
	// ========================================================================

	OpTableswitch     Opcode = 0xAA
	OpLookupswitch    Opcode = 0xAB
	OpIreturn         Opcode = 0xAC
	OpLreturn         Opcode = 0xAD
	OpFreturn         Opcode = 0xAE
	OpDreturn         Opcode = 0xAF
	OpAreturn         Opcode = 0xB0
	OpReturn          Opcode = 0xB1

	// ========================================================================
	// References (0xB2-0xC3)
	// ========================================================================

	OpGetstatic       Opcode = 0xB2
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9
	OpInvokedynamic   Opcode = 0xBA
	OpNew             Opcode = 0xBB
	OpNewarray        Opcode = 0xBC
	OpAnewarray       Opcode = 0xBD
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3

	// ========================================================================
	// Extended (0xC5-0xC9)
	// ========================================================================

	OpMultianewarray  Opcode = 0xC5
	OpIfnull          Opcode = 0xC6
	OpIfnonnull       Opcode = 0xC7
	OpGotoW           Opcode = 0xC8
	OpJsrW            Opcode = 0xC9
)

// opWide is the prefix that widens a local-variable index to two bytes.
const opWide = 0xC4

// Kind classifies an opcode by the shape of the instruction it decodes to.
type Kind uint8

const (
	KindLoad Kind = iota + 1
	KindStore
	KindIncrement
	KindBranch
	KindLookupSwitch
	KindTableSwitch
	KindReturn
	KindThrow
	KindField
	KindInvoke
	KindInvokeDynamic
	KindNewObject
	KindNewPrimitiveArray
	KindNewReferenceArray
	KindNewMultiArray
	KindArrayLoad
	KindArrayStore
	KindTypeCheck
	KindConvert
	KindOperator
	KindConstant
	KindStack
	KindMonitor
	KindNop
	KindDiscontinued
)

// OpcodeInfo provides metadata about each opcode for decoding and analysis.
type OpcodeInfo struct {
	Name string        // Mnemonic
	Size int           // Instruction length in bytes, 0 when variable
	Kind Kind          // Instruction shape
	Type desc.TypeKind // Primary operand or result kind, 0 when not fixed
	From desc.TypeKind // Source kind of a conversion
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:             {"nop", 1, KindNop, 0, 0},
	OpAconstNull:      {"aconst_null", 1, KindConstant, desc.Reference, 0},
	OpIconstM1:        {"iconst_m1", 1, KindConstant, desc.Int, 0},
	OpIconst0:         {"iconst_0", 1, KindConstant, desc.Int, 0},
	OpIconst1:         {"iconst_1", 1, KindConstant, desc.Int, 0},
	OpIconst2:         {"iconst_2", 1, KindConstant, desc.Int, 0},
	OpIconst3:         {"iconst_3", 1, KindConstant, desc.Int, 0},
	OpIconst4:         {"iconst_4", 1, KindConstant, desc.Int, 0},
	OpIconst5:         {"iconst_5", 1, KindConstant, desc.Int, 0},
	OpLconst0:         {"lconst_0", 1, KindConstant, desc.Long, 0},
	OpLconst1:         {"lconst_1", 1, KindConstant, desc.Long, 0},
	OpFconst0:         {"fconst_0", 1, KindConstant, desc.Float, 0},
	OpFconst1:         {"fconst_1", 1, KindConstant, desc.Float, 0},
	OpFconst2:         {"fconst_2", 1, KindConstant, desc.Float, 0},
	OpDconst0:         {"dconst_0", 1, KindConstant, desc.Double, 0},
	OpDconst1:         {"dconst_1", 1, KindConstant, desc.Double, 0},
	OpBipush:          {"bipush", 2, KindConstant, desc.Int, 0},
	OpSipush:          {"sipush", 3, KindConstant, desc.Int, 0},
	OpLdc:             {"ldc", 2, KindConstant, 0, 0},
	OpLdcW:            {"ldc_w", 3, KindConstant, 0, 0},
	OpLdc2W:           {"ldc2_w", 3, KindConstant, 0, 0},
	OpIload:           {"iload", 2, KindLoad, desc.Int, 0},
	OpLload:           {"lload", 2, KindLoad, desc.Long, 0},
	OpFload:           {"fload", 2, KindLoad, desc.Float, 0},
	OpDload:           {"dload", 2, KindLoad, desc.Double, 0},
	OpAload:           {"aload", 2, KindLoad, desc.Reference, 0},
	OpIload0:          {"iload_0", 1, KindLoad, desc.Int, 0},
	OpIload1:          {"iload_1", 1, KindLoad, desc.Int, 0},
	OpIload2:          {"iload_2", 1, KindLoad, desc.Int, 0},
	OpIload3:          {"iload_3", 1, KindLoad, desc.Int, 0},
	OpLload0:          {"lload_0", 1, KindLoad, desc.Long, 0},
	OpLload1:          {"lload_1", 1, KindLoad, desc.Long, 0},
	OpLload2:          {"lload_2", 1, KindLoad, desc.Long, 0},
	OpLload3:          {"lload_3", 1, KindLoad, desc.Long, 0},
	OpFload0:          {"fload_0", 1, KindLoad, desc.Float, 0},
	OpFload1:          {"fload_1", 1, KindLoad, desc.Float, 0},
	OpFload2:          {"fload_2", 1, KindLoad, desc.Float, 0},
	OpFload3:          {"fload_3", 1, KindLoad, desc.Float, 0},
	OpDload0:          {"dload_0", 1, KindLoad, desc.Double, 0},
	OpDload1:          {"dload_1", 1, KindLoad, desc.Double, 0},
	OpDload2:          {"dload_2", 1, KindLoad, desc.Double, 0},
	OpDload3:          {"dload_3", 1, KindLoad, desc.Double, 0},
	OpAload0:          {"aload_0", 1, KindLoad, desc.Reference, 0},
	OpAload1:          {"aload_1", 1, KindLoad, desc.Reference, 0},
	OpAload2:          {"aload_2", 1, KindLoad, desc.Reference, 0},
	OpAload3:          {"aload_3", 1, KindLoad, desc.Reference, 0},
	OpIaload:          {"iaload", 1, KindArrayLoad, desc.Int, 0},
	OpLaload:          {"laload", 1, KindArrayLoad, desc.Long, 0},
	OpFaload:          {"faload", 1, KindArrayLoad, desc.Float, 0},
	OpDaload:          {"daload", 1, KindArrayLoad, desc.Double, 0},
	OpAaload:          {"aaload", 1, KindArrayLoad, desc.Reference, 0},
	OpBaload:          {"baload", 1, KindArrayLoad, desc.Byte, 0},
	OpCaload:          {"caload", 1, KindArrayLoad, desc.Char, 0},
	OpSaload:          {"saload", 1, KindArrayLoad, desc.Short, 0},
	OpIstore:          {"istore", 2, KindStore, desc.Int, 0},
	OpLstore:          {"lstore", 2, KindStore, desc.Long, 0},
	OpFstore:          {"fstore", 2, KindStore, desc.Float, 0},
	OpDstore:          {"dstore", 2, KindStore, desc.Double, 0},
	OpAstore:          {"astore", 2, KindStore, desc.Reference, 0},
	OpIstore0:         {"istore_0", 1, KindStore, desc.Int, 0},
	OpIstore1:         {"istore_1", 1, KindStore, desc.Int, 0},
	OpIstore2:         {"istore_2", 1, KindStore, desc.Int, 0},
	OpIstore3:         {"istore_3", 1, KindStore, desc.Int, 0},
	OpLstore0:         {"lstore_0", 1, KindStore, desc.Long, 0},
	OpLstore1:         {"lstore_1", 1, KindStore, desc.Long, 0},
	OpLstore2:         {"lstore_2", 1, KindStore, desc.Long, 0},
	OpLstore3:         {"lstore_3", 1, KindStore, desc.Long, 0},
	OpFstore0:         {"fstore_0", 1, KindStore, desc.Float, 0},
	OpFstore1:         {"fstore_1", 1, KindStore, desc.Float, 0},
	OpFstore2:         {"fstore_2", 1, KindStore, desc.Float, 0},
	OpFstore3:         {"fstore_3", 1, KindStore, desc.Float, 0},
	OpDstore0:         {"dstore_0", 1, KindStore, desc.Double, 0},
	OpDstore1:         {"dstore_1", 1, KindStore, desc.Double, 0},
	OpDstore2:         {"dstore_2", 1, KindStore, desc.Double, 0},
	OpDstore3:         {"dstore_3", 1, KindStore, desc.Double, 0},
	OpAstore0:         {"astore_0", 1, KindStore, desc.Reference, 0},
	OpAstore1:         {"astore_1", 1, KindStore, desc.Reference, 0},
	OpAstore2:         {"astore_2", 1, KindStore, desc.Reference, 0},
	OpAstore3:         {"astore_3", 1, KindStore, desc.Reference, 0},
	OpIastore:         {"iastore", 1, KindArrayStore, desc.Int, 0},
	OpLastore:         {"lastore", 1, KindArrayStore, desc.Long, 0},
	OpFastore:         {"fastore", 1, KindArrayStore, desc.Float, 0},
	OpDastore:         {"dastore", 1, KindArrayStore, desc.Double, 0},
	OpAastore:         {"aastore", 1, KindArrayStore, desc.Reference, 0},
	OpBastore:         {"bastore", 1, KindArrayStore, desc.Byte, 0},
	OpCastore:         {"castore", 1, KindArrayStore, desc.Char, 0},
	OpSastore:         {"sastore", 1, KindArrayStore, desc.Short, 0},
	OpPop:             {"pop", 1, KindStack, 0, 0},
	OpPop2:            {"pop2", 1, KindStack, 0, 0},
	OpDup:             {"dup", 1, KindStack, 0, 0},
	OpDupX1:           {"dup_x1", 1, KindStack, 0, 0},
	OpDupX2:           {"dup_x2", 1, KindStack, 0, 0},
	OpDup2:            {"dup2", 1, KindStack, 0, 0},
	OpDup2X1:          {"dup2_x1", 1, KindStack, 0, 0},
	OpDup2X2:          {"dup2_x2", 1, KindStack, 0, 0},
	OpSwap:            {"swap", 1, KindStack, 0, 0},
	OpIadd:            {"iadd", 1, KindOperator, desc.Int, 0},
	OpLadd:            {"ladd", 1, KindOperator, desc.Long, 0},
	OpFadd:            {"fadd", 1, KindOperator, desc.Float, 0},
	OpDadd:            {"dadd", 1, KindOperator, desc.Double, 0},
	OpIsub:            {"isub", 1, KindOperator, desc.Int, 0},
	OpLsub:            {"lsub", 1, KindOperator, desc.Long, 0},
	OpFsub:            {"fsub", 1, KindOperator, desc.Float, 0},
	OpDsub:            {"dsub", 1, KindOperator, desc.Double, 0},
	OpImul:            {"imul", 1, KindOperator, desc.Int, 0},
	OpLmul:            {"lmul", 1, KindOperator, desc.Long, 0},
	OpFmul:            {"fmul", 1, KindOperator, desc.Float, 0},
	OpDmul:            {"dmul", 1, KindOperator, desc.Double, 0},
	OpIdiv:            {"idiv", 1, KindOperator, desc.Int, 0},
	OpLdiv:            {"ldiv", 1, KindOperator, desc.Long, 0},
	OpFdiv:            {"fdiv", 1, KindOperator, desc.Float, 0},
	OpDdiv:            {"ddiv", 1, KindOperator, desc.Double, 0},
	OpIrem:            {"irem", 1, KindOperator, desc.Int, 0},
	OpLrem:            {"lrem", 1, KindOperator, desc.Long, 0},
	OpFrem:            {"frem", 1, KindOperator, desc.Float, 0},
	OpDrem:            {"drem", 1, KindOperator, desc.Double, 0},
	OpIneg:            {"ineg", 1, KindOperator, desc.Int, 0},
	OpLneg:            {"lneg", 1, KindOperator, desc.Long, 0},
	OpFneg:            {"fneg", 1, KindOperator, desc.Float, 0},
	OpDneg:            {"dneg", 1, KindOperator, desc.Double, 0},
	OpIshl:            {"ishl", 1, KindOperator, desc.Int, 0},
	OpLshl:            {"lshl", 1, KindOperator, desc.Long, 0},
	OpIshr:            {"ishr", 1, KindOperator, desc.Int, 0},
	OpLshr:            {"lshr", 1, KindOperator, desc.Long, 0},
	OpIushr:           {"iushr", 1, KindOperator, desc.Int, 0},
	OpLushr:           {"lushr", 1, KindOperator, desc.Long, 0},
	OpIand:            {"iand", 1, KindOperator, desc.Int, 0},
	OpLand:            {"land", 1, KindOperator, desc.Long, 0},
	OpIor:             {"ior", 1, KindOperator, desc.Int, 0},
	OpLor:             {"lor", 1, KindOperator, desc.Long, 0},
	OpIxor:            {"ixor", 1, KindOperator, desc.Int, 0},
	OpLxor:            {"lxor", 1, KindOperator, desc.Long, 0},
	OpIinc:            {"iinc", 3, KindIncrement, desc.Int, 0},
	OpI2l:             {"i2l", 1, KindConvert, desc.Long, desc.Int},
	OpI2f:             {"i2f", 1, KindConvert, desc.Float, desc.Int},
	OpI2d:             {"i2d", 1, KindConvert, desc.Double, desc.Int},
	OpL2i:             {"l2i", 1, KindConvert, desc.Int, desc.Long},
	OpL2f:             {"l2f", 1, KindConvert, desc.Float, desc.Long},
	OpL2d:             {"l2d", 1, KindConvert, desc.Double, desc.Long},
	OpF2i:             {"f2i", 1, KindConvert, desc.Int, desc.Float},
	OpF2l:             {"f2l", 1, KindConvert, desc.Long, desc.Float},
	OpF2d:             {"f2d", 1, KindConvert, desc.Double, desc.Float},
	OpD2i:             {"d2i", 1, KindConvert, desc.Int, desc.Double},
	OpD2l:             {"d2l", 1, KindConvert, desc.Long, desc.Double},
	OpD2f:             {"d2f", 1, KindConvert, desc.Float, desc.Double},
	OpI2b:             {"i2b", 1, KindConvert, desc.Byte, desc.Int},
	OpI2c:             {"i2c", 1, KindConvert, desc.Char, desc.Int},
	OpI2s:             {"i2s", 1, KindConvert, desc.Short, desc.Int},
	OpLcmp:            {"lcmp", 1, KindOperator, desc.Int, 0},
	OpFcmpl:           {"fcmpl", 1, KindOperator, desc.Int, 0},
	OpFcmpg:           {"fcmpg", 1, KindOperator, desc.Int, 0},
	OpDcmpl:           {"dcmpl", 1, KindOperator, desc.Int, 0},
	OpDcmpg:           {"dcmpg", 1, KindOperator, desc.Int, 0},
	OpIfeq:            {"ifeq", 3, KindBranch, desc.Int, 0},
	OpIfne:            {"ifne", 3, KindBranch, desc.Int, 0},
	OpIflt:            {"iflt", 3, KindBranch, desc.Int, 0},
	OpIfge:            {"ifge", 3, KindBranch, desc.Int, 0},
	OpIfgt:            {"ifgt", 3, KindBranch, desc.Int, 0},
	OpIfle:            {"ifle", 3, KindBranch, desc.Int, 0},
	OpIfIcmpeq:        {"if_icmpeq", 3, KindBranch, desc.Int, 0},
	OpIfIcmpne:        {"if_icmpne", 3, KindBranch, desc.Int, 0},
	OpIfIcmplt:        {"if_icmplt", 3, KindBranch, desc.Int, 0},
	OpIfIcmpge:        {"if_icmpge", 3, KindBranch, desc.Int, 0},
	OpIfIcmpgt:        {"if_icmpgt", 3, KindBranch, desc.Int, 0},
	OpIfIcmple:        {"if_icmple", 3, KindBranch, desc.Int, 0},
	OpIfAcmpeq:        {"if_acmpeq", 3, KindBranch, desc.Reference, 0},
	OpIfAcmpne:        {"if_acmpne", 3, KindBranch, desc.Reference, 0},
	OpGoto:            {"goto", 3, KindBranch, desc.Void, 0},
	OpJsr:             {"jsr", 3, KindDiscontinued, 0, 0},
	OpRet:             {"ret", 2, KindDiscontinued, 0, 0},
	OpTableswitch:     {"tableswitch", 0, KindTableSwitch, desc.Int, 0},
	OpLookupswitch:    {"lookupswitch", 0, KindLookupSwitch, desc.Int, 0},
	OpIreturn:         {"ireturn", 1, KindReturn, desc.Int, 0},
	OpLreturn:         {"lreturn", 1, KindReturn, desc.Long, 0},
	OpFreturn:         {"freturn", 1, KindReturn, desc.Float, 0},
	OpDreturn:         {"dreturn", 1, KindReturn, desc.Double, 0},
	OpAreturn:         {"areturn", 1, KindReturn, desc.Reference, 0},
	OpReturn:          {"return", 1, KindReturn, desc.Void, 0},
	OpGetstatic:       {"getstatic", 3, KindField, 0, 0},
	OpPutstatic:       {"putstatic", 3, KindField, 0, 0},
	OpGetfield:        {"getfield", 3, KindField, 0, 0},
	OpPutfield:        {"putfield", 3, KindField, 0, 0},
	OpInvokevirtual:   {"invokevirtual", 3, KindInvoke, 0, 0},
	OpInvokespecial:   {"invokespecial", 3, KindInvoke, 0, 0},
	OpInvokestatic:    {"invokestatic", 3, KindInvoke, 0, 0},
	OpInvokeinterface: {"invokeinterface", 5, KindInvoke, 0, 0},
	OpInvokedynamic:   {"invokedynamic", 5, KindInvokeDynamic, 0, 0},
	OpNew:             {"new", 3, KindNewObject, desc.Reference, 0},
	OpNewarray:        {"newarray", 2, KindNewPrimitiveArray, desc.Reference, 0},
	OpAnewarray:       {"anewarray", 3, KindNewReferenceArray, desc.Reference, 0},
	OpArraylength:     {"arraylength", 1, KindOperator, desc.Int, 0},
	OpAthrow:          {"athrow", 1, KindThrow, desc.Reference, 0},
	OpCheckcast:       {"checkcast", 3, KindTypeCheck, desc.Reference, 0},
	OpInstanceof:      {"instanceof", 3, KindTypeCheck, desc.Int, 0},
	OpMonitorenter:    {"monitorenter", 1, KindMonitor, desc.Reference, 0},
	OpMonitorexit:     {"monitorexit", 1, KindMonitor, desc.Reference, 0},
	OpMultianewarray:  {"multianewarray", 4, KindNewMultiArray, desc.Reference, 0},
	OpIfnull:          {"ifnull", 3, KindBranch, desc.Reference, 0},
	OpIfnonnull:       {"ifnonnull", 3, KindBranch, desc.Reference, 0},
	OpGotoW:           {"goto_w", 5, KindBranch, desc.Void, 0},
	OpJsrW:            {"jsr_w", 5, KindDiscontinued, 0, 0},
}

// Info returns metadata for an opcode. The second result is false for bytes
// that are not JVM opcodes.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// Kind returns the instruction shape of the opcode.
func (op Opcode) Kind() Kind { return opcodeInfoTable[op].Kind }

// Size returns the fixed instruction length, or 0 for switches.
func (op Opcode) Size() int { return opcodeInfoTable[op].Size }

// TypeKind returns the primary kind of the opcode.
func (op Opcode) TypeKind() desc.TypeKind { return opcodeInfoTable[op].Type }

// IsUnconditionalBranch reports whether control never falls through op to
// the next instruction.
func (op Opcode) IsUnconditionalBranch() bool {
	switch op {
	case OpGoto, OpGotoW, OpAthrow, OpTableswitch, OpLookupswitch,
		OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn:
		return true
	}
	return false
}

// implicitSlot returns the slot encoded in a xload_n or xstore_n opcode.
func (op Opcode) implicitSlot() (int, bool) {
	switch {
	case op >= OpIload0 && op <= OpAload3:
		return int(op-OpIload0) % 4, true
	case op >= OpIstore0 && op <= OpAstore3:
		return int(op-OpIstore0) % 4, true
	}
	return 0, false
}

// loadOpcode returns the one-byte-index load opcode for kind k.
func loadOpcode(k desc.TypeKind) (Opcode, bool) {
	switch k.Computational() {
	case desc.Int:
		return OpIload, true
	case desc.Long:
		return OpLload, true
	case desc.Float:
		return OpFload, true
	case desc.Double:
		return OpDload, true
	case desc.Reference:
		return OpAload, true
	}
	return 0, false
}

// storeOpcode returns the one-byte-index store opcode for kind k.
func storeOpcode(k desc.TypeKind) (Opcode, bool) {
	op, ok := loadOpcode(k)
	return op + (OpIstore - OpIload), ok
}

// returnOpcode returns the return opcode for kind k.
func returnOpcode(k desc.TypeKind) (Opcode, bool) {
	switch k.Computational() {
	case desc.Int:
		return OpIreturn, true
	case desc.Long:
		return OpLreturn, true
	case desc.Float:
		return OpFreturn, true
	case desc.Double:
		return OpDreturn, true
	case desc.Reference:
		return OpAreturn, true
	case desc.Void:
		return OpReturn, true
	}
	return 0, false
}

// shortForm returns the xload_n or xstore_n opcode for base and slot.
func shortForm(base Opcode, slot int) (Opcode, bool) {
	if slot < 0 || slot > 3 {
		return 0, false
	}
	switch {
	case base >= OpIload && base <= OpAload:
		return OpIload0 + Opcode(int(base-OpIload)*4+slot), true
	case base >= OpIstore && base <= OpAstore:
		return OpIstore0 + Opcode(int(base-OpIstore)*4+slot), true
	}
	return 0, false
}

// baseForm maps a xload_n or xstore_n opcode to its indexed form.
func baseForm(op Opcode) Opcode {
	switch {
	case op >= OpIload0 && op <= OpAload3:
		return OpIload + Opcode(int(op-OpIload0)/4)
	case op >= OpIstore0 && op <= OpAstore3:
		return OpIstore + Opcode(int(op-OpIstore0)/4)
	}
	return op
}

// newarray type codes.
var primitiveArrayCodes = map[int]desc.TypeKind{
	4:  desc.Boolean,
	5:  desc.Char,
	6:  desc.Float,
	7:  desc.Double,
	8:  desc.Byte,
	9:  desc.Short,
	10: desc.Int,
	11: desc.Long,
}

func primitiveArrayCode(k desc.TypeKind) (int, bool) {
	for code, kind := range primitiveArrayCodes {
		if kind == k {
			return code, true
		}
	}
	return 0, false
}
