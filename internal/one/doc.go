// Package one provides the OpenNebula connection used by the image
// controller.
//
// This package wraps goca's controllers to provide:
//   - Connection setup from endpoint and credentials
//   - Image and VM lookups converted from goca's image and vm schemas
//   - The image mutations (allocate, delete, chmod, persistent) and the VM
//     disk calls (attach, save-as, legacy save-disk)
//   - Template serialization with goca's dynamic_template package
//
// Only the legacy one.vm.savedisk call goes through the raw XML-RPC
// client, because goca no longer wraps it.
//
// A *Client satisfies image.Driver:
//
//	client := one.NewClient(one.Config{
//	    Endpoint: "http://one.example.com:2633/RPC2",
//	    User:     "oneadmin",
//	    Password: "secret",
//	})
//	ctrl, err := image.NewController(ctx, client, opts)
//
// Error Classification:
//
// Transport failures wrap image.ErrRemoteUnavailable. Errors reported by
// OpenNebula wrap image.ErrRemote and keep the remote message. Lookups of
// objects that do not exist return nil without an error.
package one
