package location

// DWARF location expression opcodes.
const (
	opAddr        = 0x03 // Constant address
	opDeref       = 0x06
	opConst1u     = 0x08
	opConst1s     = 0x09
	opConst2u     = 0x0a
	opConst2s     = 0x0b
	opConst4u     = 0x0c
	opConst4s     = 0x0d
	opConst8u     = 0x0e
	opConst8s     = 0x0f
	opConstu      = 0x10 // ULEB128 constant
	opConsts      = 0x11 // SLEB128 constant
	opAnd         = 0x1a
	opMinus       = 0x1c
	opPlus        = 0x22
	opPlusUconst  = 0x23
	opLit0        = 0x30
	opLit31       = 0x4f
	opReg0        = 0x50 // Register 0
	opReg31       = 0x6f // Register 31
	opBreg0       = 0x70 // Base register 0 + offset
	opBreg31      = 0x8f // Base register 31 + offset
	opRegx        = 0x90 // Register with ULEB128 number
	opFbreg       = 0x91 // Frame base relative
	opBregx       = 0x92
	opPiece       = 0x93
	opFormTLS     = 0x9b
	opStackValue  = 0x9f
	opEntryValue  = 0xa3
	opGNUPushTLS  = 0xe0
	opGNUEntryVal = 0xf3 // GCC extension, predates opEntryValue
)

// DWARF 5 location list entry kinds (DW_LLE_*).
const (
	lleEndOfList      = 0x00
	lleBaseAddressx   = 0x01
	lleStartxEndx     = 0x02
	lleStartxLength   = 0x03
	lleOffsetPair     = 0x04
	lleDefaultLoc     = 0x05
	lleBaseAddress    = 0x06
	lleStartEnd       = 0x07
	lleStartLength    = 0x08
	loclistsOffsetLen = 4 // 32-bit DWARF offset entry width
)
