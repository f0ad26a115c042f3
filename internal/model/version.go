package model

// Version is stamped at build time with -ldflags "-X vex/internal/model.Version=...".
var Version = "0.3.0-dev"
