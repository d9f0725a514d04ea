package statforge

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/aretw0/statforge.Version=v1.0.0".
var Version = "dev"
