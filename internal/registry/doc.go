// Package registry persists environment records.
//
// Each record lives in <state>/registry/<id>.json and is rewritten
// atomically on every mutation. There is no in-memory cache: Get and List
// read the directory, so the CLI and a running server see each other's
// changes. Writers from every process serialize on <state>/registry/.lock.
//
// Callers change state only through Update, which re-reads the record,
// applies a mutation to it and persists the result:
//
//	rec, err := reg.Update(id, func(r *registry.Record) error {
//	    r.Status = registry.StatusRunning
//	    return nil
//	})
package registry
