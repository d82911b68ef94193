// Package state persists cumulative shipping statistics across restarts.
//
// The shipper records every flush (spans delivered, failed and dropped, and
// the last spool file retired) and saves the result to status.json in the
// state directory:
//
//	repo := state.NewFileRepository("/var/lib/spanship")
//
//	s, err := repo.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	s.RecordFlush(batches, delivered, failed, time.Now())
//	if err := repo.Save(ctx, s); err != nil {
//	    return err
//	}
//
// Writes go to a temp file that is renamed into place, so a crash never
// leaves a half-written status.json behind.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
package state
