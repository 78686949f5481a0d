// Package textutil provides filename sanitation for user-supplied names.
//
// SecureFileName reduces an arbitrary upload name to a flat ASCII name that
// cannot escape the directory it is joined to. SanitizeToken produces the
// lowercase tokens used inside generated output names.
package textutil
