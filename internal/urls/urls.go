package urls

// Reference URLs shown in command help and troubleshooting hints

// AlpacaAPI is the ASCOM Alpaca API reference, including the management
// endpoints and the discovery protocol.
const AlpacaAPI = "https://ascom-standards.org/api/"

// ASCOMStandards is the ASCOM Initiative home page.
const ASCOMStandards = "https://ascom-standards.org/"

// ASCOMRemote is the reference Alpaca server implementation, useful for
// checking a network without real hardware.
const ASCOMRemote = "https://github.com/ASCOMInitiative/ASCOMRemote"
