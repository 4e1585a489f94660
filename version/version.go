package version

// Version is the semantic version of the meetman build.
const Version = "0.1.0"
