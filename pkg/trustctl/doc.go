// Package trustctl is the client-side controller for multi-device session
// and trust management.
//
// The controller wraps the registry API behind a stateful facade: it holds
// the fetched device list, enforces the trust rule locally before issuing
// mutations, and reconciles local state from the outcome of each call
// instead of refetching.
//
// The rule it enforces: a device may always terminate its own session; it
// may terminate any other device's session if and only if it is currently
// trusted. The rule is evaluated against the latest known trust state, so a
// just-untrusted current device loses its authority immediately, without a
// round trip. Local rejections populate the same error channel as network
// and backend failures and never reach the wire.
//
//	client := trustctl.NewHTTPClient(baseURL, trustctl.StaticToken(token), nil)
//	ctl := trustctl.NewController(client, guard)
//
//	if err := ctl.FetchDevices(ctx); err != nil { ... }
//	err := ctl.LogoutDevice(ctx, deviceID)
//
// Authentication failures (the backend's "token not found" sentinel or a 401)
// are not recovered here; the controller invokes the injected SessionGuard's
// ForceLogout and surfaces the error once, with no retry.
package trustctl
