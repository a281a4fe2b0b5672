package main

import _ "embed"

// embeddedConfig is the default YAML configuration compiled into the binary.
// It seeds the layered config load and is written out verbatim on first run
// when no config file exists yet.
//
//go:embed config.example.yaml
var embeddedConfig []byte
