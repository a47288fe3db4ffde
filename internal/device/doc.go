// Package device provides the bike registry.
//
// The registry is the host-side catalogue of bikes seen on a configured
// account. Each record carries the identity and descriptive metadata the
// presentation layers show: display name, manufacturer, model, serial
// number and hardware version tag. Records are refreshed from every
// successful setup so renames and hardware changes on the vendor side are
// picked up.
//
// Telemetry (location, odometer, module charge) is not stored here; it
// lives only in the coordinator's in-memory snapshot.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	d := device.FromBike(entryID, b)
//	changed, err := registry.UpsertDevice(ctx, &d)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. The Repository implementation
// must also be thread-safe.
package device
