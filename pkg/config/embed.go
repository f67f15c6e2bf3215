package config

import _ "embed"

// defaultConfig holds the built-in settings. User configuration and
// environment variables are layered on top of it.
//
//go:embed dotup.toml
var defaultConfig []byte
