package simple

// Version of the Simple front end. Bumped on releases of the language or
// the IR surface.
const Version = "0.10.0"

// BuildDate is stamped by the release script; "dev" for local builds.
var BuildDate = "dev"
