package model

// Version is the release version, overridden with -ldflags at build time.
var Version = "0.4.0"

// Release repository used by the update check.
const (
	RepoOwner = "envman"
	RepoName  = "envman"
)
