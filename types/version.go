package types

// Version is the canonical project version.
// The CLI, the relay hello and the telemetry records share this version.
const Version = "0.3.0"

// ContractVersion is the version of the relay wire contract.
// Producer and consumer refuse to talk across different contract versions.
const ContractVersion = "0.3.0"
