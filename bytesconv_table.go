package httpcore

// These lookup tables mirror what bytesconv_table_gen.go would emit as
// generated constants; built as package-level vars via init since this
// module doesn't check in the generated output.

const maxHexIntChars = 16

var strGMT = []byte("GMT")

var (
	hex2intTable              [256]byte
	toLowerTable              [256]byte
	quotedArgShouldEscapeTable [256]byte
	quotedPathShouldEscapeTable [256]byte
)

func init() {
	for i := 0; i < 256; i++ {
		c := byte(16)
		switch {
		case i >= '0' && i <= '9':
			c = byte(i) - '0'
		case i >= 'a' && i <= 'f':
			c = byte(i) - 'a' + 10
		case i >= 'A' && i <= 'F':
			c = byte(i) - 'A' + 10
		}
		hex2intTable[i] = c
	}

	for i := 0; i < 256; i++ {
		c := byte(i)
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		toLowerTable[i] = c
	}

	for i := 0; i < 256; i++ {
		quotedArgShouldEscapeTable[i] = 1
	}
	for i := int('a'); i <= int('z'); i++ {
		quotedArgShouldEscapeTable[i] = 0
	}
	for i := int('A'); i <= int('Z'); i++ {
		quotedArgShouldEscapeTable[i] = 0
	}
	for i := int('0'); i <= int('9'); i++ {
		quotedArgShouldEscapeTable[i] = 0
	}
	for _, v := range `-_.~` {
		quotedArgShouldEscapeTable[v] = 0
	}

	quotedPathShouldEscapeTable = quotedArgShouldEscapeTable
	for _, v := range `$&+,/:;=@` {
		quotedPathShouldEscapeTable[v] = 0
	}
}

// hexbyte2int returns the numeric value of a hex digit, or -1 if c isn't one.
func hexbyte2int(c byte) int {
	v := hex2intTable[c]
	if v == 16 {
		return -1
	}
	return int(v)
}
