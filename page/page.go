// Package page implements the fixed-size-page block store: one file,
// random-access read/write of opaque payloads behind a framing header.
// Grounded on the teacher's plain os.File wrapper (fs/file_io.go in the
// SharedCode/sop retrieval) and the slotted/fixed-page framing idea shown
// in the retrieval pack's flydb page store (other_examples), adapted to a
// flat header-then-payload frame instead of a slotted layout since
// BlazeDB pages hold exactly one document, never many.
package page

import "github.com/Mikedan37/BlazeDB"

const (
	// DefaultSize is the page size used when a Store is opened without an
	// explicit override.
	DefaultSize = 4096

	magicByte0 = 'B'
	magicByte1 = 'Z'
	magicByte2 = 'D'
	magicByte3 = 'B'
	version    = byte(0x01)

	// HeaderSize is the framing overhead: 4-byte magic + 1-byte version.
	HeaderSize = 5
)

var magic = [4]byte{magicByte0, magicByte1, magicByte2, magicByte3}

// MaxPayload returns the largest payload a page of the given size can
// hold.
func MaxPayload(pageSize int) int {
	return pageSize - HeaderSize
}

// frame lays out [magic][version][payload][zero-pad] into a pageSize-long
// buffer. Callers must have already checked len(payload) <= MaxPayload.
func frame(payload []byte, pageSize int) []byte {
	buf := make([]byte, pageSize)
	copy(buf[0:4], magic[:])
	buf[4] = version
	copy(buf[HeaderSize:], payload)
	return buf
}

// hasValidHeader reports whether the first 5 bytes of buf are the current
// magic+version.
func hasValidHeader(buf []byte) bool {
	return len(buf) >= HeaderSize &&
		buf[0] == magic[0] && buf[1] == magic[1] && buf[2] == magic[2] && buf[3] == magic[3] &&
		buf[4] == version
}

// isAllZero reports whether every byte in buf is zero.
func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// trimTrailingZeros returns payload with any trailing run of zero bytes
// removed, matching the "trailing zero run trimmed" read contract.
func trimTrailingZeros(payload []byte) []byte {
	end := len(payload)
	for end > 0 && payload[end-1] == 0 {
		end--
	}
	return payload[:end]
}

func tooLargeErr(pageSize, payloadLen int) error {
	return blazedb.NewError(blazedb.TooLarge, nil, map[string]int{
		"pageSize": pageSize, "payloadLen": payloadLen, "maxPayload": MaxPayload(pageSize),
	})
}
