// Package image converges declared OpenNebula images to their remote state.
//
// A Controller holds one connection (a Driver) and exposes one method per
// action:
//   - Allocate: Create an empty image if none with the name exists
//   - Create: Allocate, then wait for the image to become READY
//   - Destroy: Delete the image and wait until it is gone
//   - Attach: Attach the image as a disk of a VM
//   - Snapshot: Save a VM disk as a new image
//   - Upload: Register an image from a local file or a URL
//   - Download: Fetch an image's backing file to local storage
//
// Every action is idempotent at the observable level. Calling it twice
// converges to the same remote state and only the first call reports
// Changed.
//
// Error Handling:
//
// Failures are returned as *Error values whose Kind is one of the Err*
// sentinels, so callers match them with errors.Is. Mutating remote calls
// are never retried. Only waiting for their completion is, and every wait
// is bounded by a timeout. When a wait fails after the remote call went
// through, the error is marked Mutated and its message says so.
//
// Context Support:
//
// All actions accept a context.Context. Cancellation is honored between
// poll iterations and returned unchanged.
package image
