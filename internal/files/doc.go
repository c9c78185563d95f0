// Package files stores certificate artifacts.
//
// Storage is the capability the certificate generator writes through. Local
// keeps artifacts under a root directory on disk and exposes them below a
// public base URL; the HTTP layer serves that directory read-only.
package files
