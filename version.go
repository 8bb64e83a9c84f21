package lattice

// Version is the module version reported by the CLI and the HTTP server.
const Version = "0.1.0"
