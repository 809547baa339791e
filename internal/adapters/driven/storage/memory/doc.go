// Package memory holds settings in process memory. It backs tests and
// runs where no settings file should be read or written.
package memory
