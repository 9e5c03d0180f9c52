// Package wart is a parking lot for miscellaneous shims while doing any
// internal refactoring.
//
// "Wart" is slightly more descriptive than "misc" or "util". This package isn't
// actually deprecated per-se, but adding the annotation makes some editors
// display a nice note near the import.
//
// The API for this package is *not* stable; ideally it's empty and unused.
//
// Deprecated: importing "wart" means there refactoring work to be done here.
package wart
