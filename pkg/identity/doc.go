// Package identity derives a stable, locally-cached identity bundle for the
// running client device.
//
// The bundle combines a deterministic fingerprint (SHA-256 over stable
// environment signals) with best-effort descriptive metadata: device type,
// name, model, OS version and app version. The fingerprint is used at login
// time to register or recognize the device, and afterwards to let the client
// spot its own record in a device listing.
//
// # Basic Usage
//
//	store, err := identity.DefaultStore()
//	if err != nil {
//		return err
//	}
//
//	sig := identity.CollectSignals(userAgent, appVersion)
//	info, err := store.GetOrCreate(sig)
//	// info.DeviceID is stable across restarts of the same client
//
// Derivation never fails: missing environment capabilities degrade to empty
// signal values, and a corrupt cache file is silently regenerated. Collisions
// across distinct physical devices are statistically unlikely but accepted;
// the fingerprint is not a cryptographic identity.
package identity
