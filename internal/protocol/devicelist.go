package protocol

// Device identity tables, indexed by the raw model byte (word 17) and the raw
// type byte (word 16) of the status dump.
//
// These are placeholder names. The vendor's index-to-name list was not
// available, so the entries only cover the indices 0-8 and 0-3 with made-up
// labels. DecodeResponse rejects any other byte, which means a unit reporting
// an index outside these ranges cannot be read at all until its entry is
// added here.

var deviceModels = map[byte]string{
	0x00: "KWL 200",
	0x01: "KWL 250",
	0x02: "KWL 300",
	0x03: "KWL 340",
	0x04: "KWL 360",
	0x05: "KWL 450",
	0x06: "KWL 500",
	0x07: "KWL 600",
	0x08: "KWL 800",
}

var deviceTypes = map[byte]string{
	0x00: "Standard",
	0x01: "Enthalpy",
	0x02: "Standard (left)",
	0x03: "Enthalpy (left)",
}

// LookupModel returns the model name for a raw model byte
func LookupModel(raw byte) (string, bool) {
	name, ok := deviceModels[raw]
	return name, ok
}

// LookupType returns the type name for a raw type byte
func LookupType(raw byte) (string, bool) {
	name, ok := deviceTypes[raw]
	return name, ok
}
