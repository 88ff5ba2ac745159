// Package viz renders model results for the terminal: styled key/value
// reports and ASCII altitude profiles.
package viz
