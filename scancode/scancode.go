// Package scancode translates HID keyboard usage codes into the console keyboard
// bus alphabet (a PS/2 set-2 subset) and defines the protocol prefix bytes.
package scancode

// None is returned for usage codes without a bus equivalent.
const None uint8 = 0x00

// Protocol bytes understood by the console keyboard controller.
const (
	Break     uint8 = 0xF0 // precedes a scancode to signal key release
	Extended  uint8 = 0xE0 // precedes scancodes from the extended block
	ShiftMake uint8 = 0x12 // left shift
	Delete    uint8 = 0x71 // the only extended scancode the console uses
)

// Size is the number of usage codes covered by the tables.
const Size = 128

// Pair holds the unshifted and shifted scancode of one usage code.
// A zero Shifted entry means the key has no mapping while shift is held.
type Pair struct {
	Plain   uint8
	Shifted uint8
}

// Table maps usage codes 0x00-0x7F to scancode pairs.
type Table [Size]Pair

// Lookup returns the pair for usage, or the zero pair when usage is out of range.
func (t *Table) Lookup(usage uint8) Pair {
	if int(usage) >= Size {
		return Pair{}
	}
	return t[usage]
}

// Translate resolves usage with the given shift state. The shifted column is
// authoritative when shifted is true: a missing shifted entry yields None
// even if the plain column has a value.
func (t *Table) Translate(usage uint8, shifted bool) uint8 {
	p := t.Lookup(usage)
	if shifted {
		return p.Shifted
	}
	return p.Plain
}

// Translate resolves usage against the default table.
func Translate(usage uint8, shifted bool) uint8 {
	return Default.Translate(usage, shifted)
}

// NeedsExtended reports whether code must be preceded by the Extended prefix.
func NeedsExtended(code uint8) bool {
	return code == Delete
}

// both returns a pair present in both columns.
func both(code uint8) Pair { return Pair{Plain: code, Shifted: code} }

// plainOnly returns a pair with no shifted mapping.
func plainOnly(code uint8) Pair { return Pair{Plain: code} }

// Default is the table used by the console keyboard.
var Default = Table{
	// Letters
	0x04: both(0x1C), // a
	0x05: both(0x32), // b
	0x06: both(0x21), // c
	0x07: both(0x23), // d
	0x08: both(0x24), // e
	0x09: both(0x2B), // f
	0x0A: both(0x34), // g
	0x0B: both(0x33), // h
	0x0C: both(0x43), // i
	0x0D: both(0x3B), // j
	0x0E: both(0x42), // k
	0x0F: both(0x4B), // l
	0x10: both(0x3A), // m
	0x11: both(0x31), // n
	0x12: both(0x44), // o
	0x13: both(0x4D), // p
	0x14: both(0x15), // q
	0x15: both(0x2D), // r
	0x16: both(0x1B), // s
	0x17: both(0x2C), // t
	0x18: both(0x3C), // u
	0x19: both(0x2A), // v
	0x1A: both(0x1D), // w
	0x1B: both(0x22), // x
	0x1C: both(0x35), // y
	0x1D: both(0x1A), // z

	// Digits
	0x1E: both(0x16), // 1
	0x1F: both(0x1E), // 2
	0x20: both(0x26), // 3
	0x21: both(0x25), // 4
	0x22: both(0x2E), // 5
	0x23: both(0x36), // 6
	0x24: both(0x3D), // 7
	0x25: both(0x3E), // 8
	0x26: both(0x46), // 9
	0x27: both(0x45), // 0

	// Control keys, unshifted only
	0x28: plainOnly(0x5A), // Enter
	0x29: plainOnly(0x76), // Escape
	0x2A: plainOnly(0x66), // Backspace
	0x2B: plainOnly(0x0D), // Tab
	0x2C: plainOnly(0x29), // Space

	// Punctuation
	0x2D: both(0x4E), // -
	0x2E: both(0x55), // =
	0x2F: both(0x54), // [
	0x30: both(0x5B), // ]
	0x31: both(0x5D), // backslash
	0x33: both(0x4C), // ;
	0x34: both(0x52), // '
	0x35: both(0x0E), // `
	0x36: both(0x41), // ,
	0x37: both(0x49), // .
	0x38: both(0x4A), // /

	// Function keys
	0x3A: both(0x05), // F1
	0x3B: both(0x06), // F2
	0x3C: both(0x04), // F3
	0x3D: both(0x0C), // F4
	0x3E: both(0x03), // F5
	0x3F: both(0x0B), // F6
	0x40: both(0x83), // F7
	0x41: both(0x0A), // F8
	0x42: both(0x01), // F9
	0x43: both(0x09), // F10
	0x44: both(0x78), // F11
	0x45: both(0x07), // F12

	0x4C: both(Delete),

	// Arrows, unshifted only
	0x4F: plainOnly(0x74), // Right
	0x50: plainOnly(0x6B), // Left
	0x51: plainOnly(0x72), // Down
	0x52: plainOnly(0x75), // Up
}
