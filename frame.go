package main

const (
	CmdShowPixels = 0x20
	SOF0          = 0xAA
	SOF1          = 0x55
)

// Frame is a full-strip snapshot sent to the microcontroller in one bulk
// transfer: every pixel's RGB bytes plus a sequence number so dropped
// frames are visible on the far side.
type Frame struct {
	Pixels []RGB
	Seq    byte
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LENHI][LENLO][CMD][Seq][r g b ...][CKS]
//
// LEN covers CMD through the last pixel byte; CKS is the XOR of the length
// bytes and everything LEN covers, so the firmware can resync after garbage.
func (f *Frame) Encode() []byte {
	payload := make([]byte, 0, 2+len(f.Pixels)*3)
	payload = append(payload, CmdShowPixels, f.Seq)
	for _, p := range f.Pixels {
		payload = append(payload, p.R, p.G, p.B)
	}

	length := uint16(len(payload))
	lenHi := byte(length >> 8)
	lenLo := byte(length)

	cks := lenHi ^ lenLo
	for _, b := range payload {
		cks ^= b
	}

	out := make([]byte, 0, 4+len(payload)+1)
	out = append(out, SOF0, SOF1, lenHi, lenLo)
	out = append(out, payload...)
	out = append(out, cks)
	return out
}
