package device

import (
	"errors"
	"strconv"
	"strings"
)

var errMACTooShort = errors.New("hardware address needs at least six octet groups")

// UAAID folds the trailing three octets of a hardware address into the
// fingerprint integer used for hub matching: the low byte becomes the
// high byte of the result. ab:cd:ef -> 0xefcdab.
func UAAID(mac uint64) uint32 {
	var id uint32
	for byteIdx := 0; byteIdx < 3; byteIdx++ {
		id |= uint32(mac>>(byteIdx*8)&0xff) << ((2 - byteIdx) * 8)
	}

	return id
}

// FingerprintFromMAC computes the fingerprint for a colon-separated
// hardware address. It is a pure function of the trailing three octets.
func FingerprintFromMAC(mac string) (uint32, error) {
	groups := strings.Split(strings.TrimSpace(mac), ":")
	if len(groups) < 6 {
		return 0, errMACTooShort
	}

	tail := groups[len(groups)-3:]
	hex := tail[2] + tail[1] + tail[0]

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, err
	}

	return uint32(v), nil
}
