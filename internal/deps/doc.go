// Package deps reports availability of the external binaries captioner
// shells out to.
package deps
