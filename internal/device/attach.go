package device

import (
	"errors"
	"fmt"

	"github.com/bavix/faros/internal/status"
)

var (
	errNoGatewayAddr  = errors.New("status document has no gateway address")
	errNoMessageIndex = errors.New("status document has no message index")
	errNoChainIndex   = errors.New("status document has no chain index")
	errNoNetworkMACs  = errors.New("status document has no network interface table")
)

// AttachStatus merges a fetched status document into the record and
// decodes the chain-relevant fields for the device's kind. On error
// the record is left unfetched and stays out of structural reasoning.
func (d *Device) AttachStatus(doc status.Document) error {
	switch d.Kind {
	case KindHub:
		macs, ok := doc.NetworkMACs()
		if !ok {
			return errNoNetworkMACs
		}

		fingerprints := make([]uint32, 0, len(macs))

		for _, mac := range macs {
			fp, err := FingerprintFromMAC(mac)
			if err != nil {
				return fmt.Errorf("hub %s: %w", d.Serial, err)
			}

			fingerprints = append(fingerprints, fp)
		}

		d.Fingerprints = fingerprints

	case KindIris:
		mac, ok := doc.GatewayMAC()
		if !ok {
			return errNoGatewayAddr
		}

		msgIdx, ok := doc.MessageIndex()
		if !ok {
			return errNoMessageIndex
		}

		chainIdx, ok := doc.ChainIndex()
		if !ok {
			return errNoChainIndex
		}

		d.GatewayMAC = mac
		d.Fingerprint = UAAID(mac)
		// message_index is 1-based on the wire.
		d.Position = msgIdx - 1
		d.ChainID = chainIdx
		d.HeadConfig, d.IsHead = doc.RRHConfig()

	case KindCPE, KindVger:
		mac, ok := doc.GatewayMAC()
		if !ok {
			return errNoGatewayAddr
		}

		d.GatewayMAC = mac
		d.Fingerprint = UAAID(mac)
		d.HeadConfig, d.IsHead = doc.RRHConfig()
	}

	d.Status = doc

	return nil
}
