package version

var (
	// Version is the current application version
	Version = "0.1.0"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Name is the server name reported to MCP clients and /system_info.
const Name = "object-counter"
