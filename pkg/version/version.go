// Package version provides version information for the price node.
package version

// Version is the current version of the price node.
const Version = "1.1.0"

// AgentString returns the User-Agent sent by outbound pollers.
// Format: haveno-pricenode/v{version}
func AgentString() string {
	return "haveno-pricenode/v" + Version
}
