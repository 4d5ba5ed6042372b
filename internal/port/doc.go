// Package port allocates host ports for gateway environments.
//
// Each environment publishes one HTTP and one HTTPS port. Ports left at zero
// in a definition are allocated first-fit from the configured ranges,
// skipping ports held by existing environments and ports reserved by
// creates still in flight:
//
//	res, err := alloc.Reserve(used, def.Gateway.HTTPPort, def.Gateway.HTTPSPort)
//	if err != nil {
//	    return err
//	}
//	defer res.Release()
//
// A reservation is released once the environment record holding the ports
// has been persisted, or when the create fails.
package port
