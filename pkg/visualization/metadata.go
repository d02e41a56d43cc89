package visualization

// ProtocolMetadata encodes the metadata related to one protocol's computed
// results. This currently only contains the protocol name and the result
// identifier, but is intended to also encode the study structure and the
// processing steps that produced the result.
type ProtocolMetadata struct {
	protocolName string
	resultID     string
}

// NewProtocolMetadata is the ProtocolMetadata constructor.
func NewProtocolMetadata(protocolName, resultID string) *ProtocolMetadata {
	return &ProtocolMetadata{
		protocolName,
		resultID,
	}
}

// String returns a printable string with all protocol result metadata.
func (metadata *ProtocolMetadata) String() string {
	return "Protocol: " + metadata.protocolName + ", result: " + metadata.resultID
}
