// Package blob re-exports core blob abstractions and wires the concrete
// backends. Packages outside the blob tree depend on this package only.
package blob

import (
	"staffcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrExists is returned by Put when the key is taken.
	ErrExists = core.ErrExists
)
