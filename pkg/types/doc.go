// Package types defines the configuration, result types, reserved column
// names and standard errors shared by the xmlshred importer and its CLI.
package types
