package version

// Version is set at build time with -ldflags "-X structuredness/internal/shared/version.Version=...".
var Version = "dev"
