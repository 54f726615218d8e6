package device

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/bavix/faros/internal/status"
)

// Kind identifies the hardware class of a discovered unit.
type Kind string

const (
	KindHub  Kind = "hub"
	KindIris Kind = "iris"
	KindCPE  Kind = "cpe"
	KindVger Kind = "vger"
)

// Variant is the firmware image family a device is currently running.
// The update command uses it to pick the right artifacts.
type Variant string

const (
	VariantHub     Variant = "hub"
	VariantSOM6    Variant = "som6"
	VariantSOM9    Variant = "som9"
	VariantIrisRRH Variant = "iris030_rrh"
	VariantIrisUE  Variant = "iris030_ue"
	VariantIrisSDR Variant = "iris030_sdr"
	VariantCPE     Variant = "cpe"
	VariantVger    Variant = "vger"
)

// Device is the record for one discovered unit. It is immutable after
// construction except for the fields populated by the fetch step
// (Status and the decoded fields below it) and the back-references
// written by reconciliation.
type Device struct {
	Kind       Kind
	Variant    Variant
	Serial     string
	Descriptor map[string]string

	Driver     string
	Firmware   string
	FPGA       string
	Label      string
	Revision   string
	CPLD       string
	SOM        string
	SFPSerial  string
	SFPVersion string
	FESerial   string
	FEVersion  string
	Frontend   string

	// Address is the bare host parsed from the remote URL. StatusURL is
	// the HTTP endpoint for the per-device status document.
	Address   string
	StatusURL string

	// Populated once by a successful metadata fetch.
	Status      status.Document
	GatewayMAC  uint64
	Fingerprint uint32
	// Fingerprints is hub-only: the set of address fingerprints the hub
	// uses to claim nodes.
	Fingerprints []uint32

	// Chain-relevant fields decoded from the status document.
	ChainID    int
	Position   int
	IsHead     bool
	HeadConfig *status.RRHConfig

	// Back-references written by reconciliation. They are non-owning
	// lookups into the topology, keyed by serial and group handle.
	OwningHub   string
	GroupHandle int
	RRHMember   bool
}

// Fetched reports whether the metadata fetch succeeded for this device.
// Devices that never fetched are excluded from structural reasoning.
func (d *Device) Fetched() bool {
	return d.Status != nil
}

// SSHHost returns the address usable by SSH dialers (IPv6 without
// brackets, host:port composition left to the caller).
func (d *Device) SSHHost() string {
	return d.Address
}

// HTTPHost returns the address usable in URLs (IPv6 bracketed).
func (d *Device) HTTPHost() string {
	return bracketHost(d.Address)
}

func (d *Device) String() string {
	return d.Serial
}

// Ident returns the stable identity used for selection and logging.
func (d *Device) Ident() string {
	return d.Serial
}

// Details renders the one-line summary used by the tree output.
func (d *Device) Details() string {
	switch d.Kind {
	case KindVger:
		return fmt.Sprintf("%-10s - %-29s - FPGA: %s", d.Serial, d.HTTPHost(), d.FPGA)
	default:
		return fmt.Sprintf("%-10s - %-29s - FW: %s FPGA: %s", d.Serial, d.HTTPHost(), d.Firmware, d.FPGA)
	}
}

func bracketHost(host string) string {
	if host == "" || net.ParseIP(host) == nil || !strings.Contains(host, ":") {
		return host
	}

	return "[" + host + "]"
}

// newFromDescriptor fills the shared fields of a record from one raw
// enumeration descriptor and derives the address and status URL from
// the remote field.
func newFromDescriptor(kind Kind, desc map[string]string) (*Device, error) {
	d := &Device{
		Kind:        kind,
		Serial:      desc["serial"],
		Descriptor:  desc,
		Driver:      desc["driver"],
		Firmware:    desc["firmware"],
		FPGA:        desc["fpga"],
		Label:       desc["label"],
		Revision:    desc["revision"],
		CPLD:        desc["cpld"],
		SOM:         desc["som"],
		SFPSerial:   desc["sfpSerial"],
		SFPVersion:  desc["sfpVersion"],
		FESerial:    desc["feSerial"],
		FEVersion:   desc["feVersion"],
		Frontend:    desc["frontend"],
		GroupHandle: -1,
	}

	remote := desc["remote"]
	if remote != "" {
		u, err := url.Parse(remote)
		if err != nil {
			return nil, fmt.Errorf("parse remote %q: %w", remote, err)
		}

		d.Address = u.Hostname()

		statusURL := url.URL{Scheme: "http", Host: bracketHost(d.Address), Path: u.Path}
		if kind == KindHub {
			statusURL.Path = "/status.json"
		}

		d.StatusURL = statusURL.String()
	}

	d.Variant = deriveVariant(kind, desc)

	return d, nil
}

func deriveVariant(kind Kind, desc map[string]string) Variant {
	switch kind {
	case KindHub:
		switch desc["som"] {
		case "zu6eg":
			return VariantSOM6
		case "zu9eg":
			return VariantSOM9
		default:
			return VariantHub
		}
	case KindIris:
		fpga := desc["fpga"]
		switch {
		case strings.Contains(fpga, "rrh"):
			return VariantIrisRRH
		case strings.Contains(fpga, "ue"):
			return VariantIrisUE
		default:
			return VariantIrisSDR
		}
	case KindCPE:
		return VariantCPE
	case KindVger:
		return VariantVger
	}

	return ""
}
