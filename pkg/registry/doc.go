// Package registry maintains the authoritative mapping of devices to session
// state for an account.
//
// A device session is created implicitly on the first successful login from
// an unseen device ID, refreshed on authenticated activity, and soft-deleted
// on revoke. Trust is a per-device flag: a trusted device may terminate the
// sessions of other devices, an untrusted one may only terminate itself.
//
// # Basic Usage
//
//	repo := registry.NewInMemRepository()
//	service := registry.NewService(repo)
//
//	// During login
//	session, err := service.RegisterDevice(ctx, loginID, registry.RegisterDeviceRequest{
//		DeviceID:   info.DeviceID,
//		DeviceType: info.DeviceType,
//		DeviceName: info.DeviceName,
//	})
//
//	// Listing for the settings screen
//	listing, err := service.ListDevices(ctx, loginID, currentDeviceID)
//
//	// Revoking another device requires the acting device to be trusted
//	err = service.RevokeDevice(ctx, loginID, actingDeviceID, targetDeviceID)
//
// Repository implementations exist for PostgreSQL, Redis, file-based JSON
// storage and in-memory maps; see NewRepository for the factory.
package registry
