package oms

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionFile string

// Version is the current version of the object state engine library.
var Version = strings.TrimSpace(versionFile)
