// Package cli holds helpers shared by the mlptask command line: result
// output in several formats and loading of training texts from files.
package cli
