package typeinfo

// DWARF base type encodings (DW_ATE_*).
const (
	ateAddress      = 0x01
	ateBoolean      = 0x02
	ateComplexFloat = 0x03
	ateFloat        = 0x04
	ateSigned       = 0x05
	ateSignedChar   = 0x06
	ateUnsigned     = 0x07
	ateUnsignedChar = 0x08
	ateUTF          = 0x10
	ateUCS          = 0x11
	ateASCII        = 0x12
)

// encodingPrefix maps a base type encoding to the prefix of its canonical
// scalar name. The bit width is appended, so a 4-byte unsigned is "u32".
var encodingPrefix = map[int64]string{
	ateAddress:      "u",
	ateBoolean:      "bool",
	ateComplexFloat: "cf",
	ateFloat:        "f",
	ateSigned:       "s",
	ateSignedChar:   "s",
	ateUnsigned:     "u",
	ateUnsignedChar: "u",
	ateUTF:          "u",
	ateUCS:          "u",
	ateASCII:        "u",
}

// EncodingPrefix returns the scalar name prefix for a DW_ATE_* value.
func EncodingPrefix(enc int64) (string, bool) {
	p, ok := encodingPrefix[enc]
	return p, ok
}
