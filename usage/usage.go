// Package usage defines HID keyboard usage-page codes, modifier bits and the
// ASCII mapping used by terminal input sources.
package usage

// Modifier byte bitmasks (byte 0 of a boot keyboard report).
const (
	ModLeftCtrl   = 0x01
	ModLeftShift  = 0x02
	ModLeftAlt    = 0x04
	ModLeftGUI    = 0x08
	ModRightCtrl  = 0x10
	ModRightShift = 0x20
	ModRightAlt   = 0x40
	ModRightGUI   = 0x80

	ModShift = ModLeftShift | ModRightShift
)

// NoKey marks an empty slot in a report.
const NoKey = 0x00

// Keyboard/Keypad page usage codes.
const (
	KeyA = 0x04
	KeyB = 0x05
	KeyC = 0x06
	KeyD = 0x07
	KeyE = 0x08
	KeyF = 0x09
	KeyG = 0x0A
	KeyH = 0x0B
	KeyI = 0x0C
	KeyJ = 0x0D
	KeyK = 0x0E
	KeyL = 0x0F
	KeyM = 0x10
	KeyN = 0x11
	KeyO = 0x12
	KeyP = 0x13
	KeyQ = 0x14
	KeyR = 0x15
	KeyS = 0x16
	KeyT = 0x17
	KeyU = 0x18
	KeyV = 0x19
	KeyW = 0x1A
	KeyX = 0x1B
	KeyY = 0x1C
	KeyZ = 0x1D

	Key1 = 0x1E
	Key2 = 0x1F
	Key3 = 0x20
	Key4 = 0x21
	Key5 = 0x22
	Key6 = 0x23
	Key7 = 0x24
	Key8 = 0x25
	Key9 = 0x26
	Key0 = 0x27

	KeyEnter      = 0x28
	KeyEscape     = 0x29
	KeyBackspace  = 0x2A
	KeyTab        = 0x2B
	KeySpace      = 0x2C
	KeyMinus      = 0x2D // - and _
	KeyEqual      = 0x2E // = and +
	KeyLeftBrace  = 0x2F // [ and {
	KeyRightBrace = 0x30 // ] and }
	KeyBackslash  = 0x31 // \ and |
	KeyNonUSHash  = 0x32
	KeySemicolon  = 0x33 // ; and :
	KeyApostrophe = 0x34 // ' and "
	KeyGrave      = 0x35 // ` and ~
	KeyComma      = 0x36 // , and <
	KeyPeriod     = 0x37 // . and >
	KeySlash      = 0x38 // / and ?
	KeyCapsLock   = 0x39

	KeyF1  = 0x3A
	KeyF2  = 0x3B
	KeyF3  = 0x3C
	KeyF4  = 0x3D
	KeyF5  = 0x3E
	KeyF6  = 0x3F
	KeyF7  = 0x40
	KeyF8  = 0x41
	KeyF9  = 0x42
	KeyF10 = 0x43
	KeyF11 = 0x44
	KeyF12 = 0x45

	KeyPrintScreen = 0x46
	KeyScrollLock  = 0x47
	KeyPause       = 0x48
	KeyInsert      = 0x49
	KeyHome        = 0x4A
	KeyPageUp      = 0x4B
	KeyDelete      = 0x4C
	KeyEnd         = 0x4D
	KeyPageDown    = 0x4E

	KeyRight = 0x4F
	KeyLeft  = 0x50
	KeyDown  = 0x51
	KeyUp    = 0x52
)

// Stroke is a usage code together with whether shift must be held for it.
type Stroke struct {
	Code  uint8
	Shift bool
}

var asciiStrokes = [128]Stroke{
	'\t': {Code: KeyTab},
	'\n': {Code: KeyEnter},
	'\r': {Code: KeyEnter},
	0x1B: {Code: KeyEscape},
	0x7F: {Code: KeyBackspace},
	'\b': {Code: KeyBackspace},
	' ':  {Code: KeySpace},

	'-': {Code: KeyMinus}, '_': {Code: KeyMinus, Shift: true},
	'=': {Code: KeyEqual}, '+': {Code: KeyEqual, Shift: true},
	'[': {Code: KeyLeftBrace}, '{': {Code: KeyLeftBrace, Shift: true},
	']': {Code: KeyRightBrace}, '}': {Code: KeyRightBrace, Shift: true},
	'\\': {Code: KeyBackslash}, '|': {Code: KeyBackslash, Shift: true},
	';': {Code: KeySemicolon}, ':': {Code: KeySemicolon, Shift: true},
	'\'': {Code: KeyApostrophe}, '"': {Code: KeyApostrophe, Shift: true},
	'`': {Code: KeyGrave}, '~': {Code: KeyGrave, Shift: true},
	',': {Code: KeyComma}, '<': {Code: KeyComma, Shift: true},
	'.': {Code: KeyPeriod}, '>': {Code: KeyPeriod, Shift: true},
	'/': {Code: KeySlash}, '?': {Code: KeySlash, Shift: true},

	'!': {Code: Key1, Shift: true},
	'@': {Code: Key2, Shift: true},
	'#': {Code: Key3, Shift: true},
	'$': {Code: Key4, Shift: true},
	'%': {Code: Key5, Shift: true},
	'^': {Code: Key6, Shift: true},
	'&': {Code: Key7, Shift: true},
	'*': {Code: Key8, Shift: true},
	'(': {Code: Key9, Shift: true},
	')': {Code: Key0, Shift: true},
}

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		asciiStrokes[c] = Stroke{Code: KeyA + (c - 'a')}
		asciiStrokes[c-'a'+'A'] = Stroke{Code: KeyA + (c - 'a'), Shift: true}
	}
	for c := byte('1'); c <= '9'; c++ {
		asciiStrokes[c] = Stroke{Code: Key1 + (c - '1')}
	}
	asciiStrokes['0'] = Stroke{Code: Key0}
}

// FromASCII returns the keystroke that types c on a US layout.
func FromASCII(c byte) (Stroke, bool) {
	if c >= 128 {
		return Stroke{}, false
	}
	s := asciiStrokes[c]
	return s, s.Code != NoKey
}

var names = map[uint8]string{
	KeyEnter: "Enter", KeyEscape: "Escape", KeyBackspace: "Backspace", KeyTab: "Tab",
	KeySpace: "Space", KeyMinus: "Minus", KeyEqual: "Equal", KeyLeftBrace: "LeftBrace",
	KeyRightBrace: "RightBrace", KeyBackslash: "Backslash", KeyNonUSHash: "NonUSHash",
	KeySemicolon: "Semicolon", KeyApostrophe: "Apostrophe", KeyGrave: "Grave",
	KeyComma: "Comma", KeyPeriod: "Period", KeySlash: "Slash", KeyCapsLock: "CapsLock",
	KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4", KeyF5: "F5", KeyF6: "F6",
	KeyF7: "F7", KeyF8: "F8", KeyF9: "F9", KeyF10: "F10", KeyF11: "F11", KeyF12: "F12",
	KeyPrintScreen: "PrintScreen", KeyScrollLock: "ScrollLock", KeyPause: "Pause",
	KeyInsert: "Insert", KeyHome: "Home", KeyPageUp: "PageUp", KeyDelete: "Delete",
	KeyEnd: "End", KeyPageDown: "PageDown",
	KeyRight: "Right", KeyLeft: "Left", KeyDown: "Down", KeyUp: "Up",
}

// Name returns a readable name for code, used in debug output.
func Name(code uint8) string {
	switch {
	case code >= KeyA && code <= KeyZ:
		return string(rune('A' + code - KeyA))
	case code >= Key1 && code <= Key9:
		return string(rune('1' + code - Key1))
	case code == Key0:
		return "0"
	}
	if n, ok := names[code]; ok {
		return n
	}
	const hex = "0123456789ABCDEF"
	return "0x" + string([]byte{hex[code>>4], hex[code&0x0F]})
}
