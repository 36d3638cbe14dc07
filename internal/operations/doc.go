// Package operations contains the blobstore operation implementations.
// They talk to the store only through transport.Transport.
//
// Each operation is isolated into its own subpackage: upload holds the
// adaptive upload engine, list the object catalog reader, and exists the
// existence checker.
package operations
