// -- cmd/version.go --
package cmd

// Version is the application version, injected at build time via ldflags.
var Version = "dev"
