// Package config provides configuration loading and validation for the
// subtitle receiver. Configuration is YAML-based with struct validation;
// when no config file exists the built-in defaults apply, so the receiver
// runs with no arguments at all.
package config
