// Package vt decodes bytes typed on a VT100-style terminal into keystrokes
// and builds the boot keyboard reports that type them.
package vt

import (
	"github.com/sharkwire/kbbridge/usage"
)

const (
	esc = 0x1B
	csi = '['
)

type decState uint8

const (
	stGround decState = iota
	stEsc
	stCSI
)

// Decoder turns terminal bytes into keystrokes. Plain ASCII maps through the
// US layout; ESC [ sequences cover the cursor and editing keys. A lone ESC is
// only reported by Flush, once the caller decides no sequence follows.
type Decoder struct {
	state decState
	param int
}

// Pending reports whether the decoder is inside an escape sequence.
func (d *Decoder) Pending() bool { return d.state != stGround }

// Feed consumes one byte and returns the stroke it completes, if any.
func (d *Decoder) Feed(b byte) (usage.Stroke, bool) {
	switch d.state {
	case stEsc:
		if b == csi {
			d.state, d.param = stCSI, 0
			return usage.Stroke{}, false
		}
		// ESC followed by anything else is an unsupported Alt chord.
		d.state = stGround
		return usage.Stroke{}, false

	case stCSI:
		if b >= '0' && b <= '9' {
			if d.param < 100 {
				d.param = d.param*10 + int(b-'0')
			}
			return usage.Stroke{}, false
		}
		if b == ';' {
			return usage.Stroke{}, false
		}
		d.state = stGround
		code := csiKey(b, d.param)
		return usage.Stroke{Code: code}, code != usage.NoKey
	}

	if b == esc {
		d.state = stEsc
		return usage.Stroke{}, false
	}
	return usage.FromASCII(b)
}

// Flush ends a pending sequence. A bare ESC becomes the Escape key.
func (d *Decoder) Flush() (usage.Stroke, bool) {
	was := d.state
	d.state = stGround
	if was == stEsc {
		return usage.Stroke{Code: usage.KeyEscape}, true
	}
	return usage.Stroke{}, false
}

func csiKey(final byte, param int) uint8 {
	switch final {
	case 'A':
		return usage.KeyUp
	case 'B':
		return usage.KeyDown
	case 'C':
		return usage.KeyRight
	case 'D':
		return usage.KeyLeft
	case 'H':
		return usage.KeyHome
	case 'F':
		return usage.KeyEnd
	case '~':
		switch param {
		case 1, 7:
			return usage.KeyHome
		case 2:
			return usage.KeyInsert
		case 3:
			return usage.KeyDelete
		case 4, 8:
			return usage.KeyEnd
		case 5:
			return usage.KeyPageUp
		case 6:
			return usage.KeyPageDown
		}
	}
	return usage.NoKey
}

// PressReport builds the 8-byte boot keyboard report holding s.
func PressReport(s usage.Stroke) []byte {
	r := make([]byte, 8)
	if s.Shift {
		r[0] = usage.ModLeftShift
	}
	r[2] = s.Code
	return r
}

// ReleaseReport builds the all-keys-up report.
func ReleaseReport() []byte { return make([]byte, 8) }
