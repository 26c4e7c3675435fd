// Package magetasks holds the build, test and lint tasks behind the
// Magefile. Tasks print section headers and stream tool output.
package magetasks
