// ABOUTME: Version information for soittokone
// ABOUTME: Product identity shown in logs and tool output
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the program name
	Product = "soittokone"

	// Manufacturer identifies the authors
	Manufacturer = "Soittokone"
)
