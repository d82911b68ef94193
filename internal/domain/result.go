package domain

// FlushResult reports the outcome of one flush cycle.
//
// Attempted counts every span in a drained batch. Delivered counts spans in
// batches the sink accepted; Failed counts spans in batches it rejected, so
// Attempted == Delivered + Failed.
type FlushResult struct {
	Batches   int
	Attempted int
	Delivered int
	Failed    int
}

// Add folds another result into r.
func (r *FlushResult) Add(other FlushResult) {
	r.Batches += other.Batches
	r.Attempted += other.Attempted
	r.Delivered += other.Delivered
	r.Failed += other.Failed
}

// Partial returns true if some but not all spans were delivered.
func (r FlushResult) Partial() bool {
	return r.Failed > 0 && r.Delivered > 0
}
