package memory

// Bucket names used by the snapshot backends, one row/object per bucket.
const (
	BucketTalents     = "talents"
	BucketAreas       = "areas"
	BucketProjects    = "projects"
	BucketAllocations = "allocations"
)

// Buckets lists every snapshot bucket in write order.
var Buckets = []string{BucketAreas, BucketTalents, BucketProjects, BucketAllocations}

// BucketValues maps each bucket name to the snapshot map it stores.
func (s Snapshot) BucketValues() map[string]any {
	return map[string]any{
		BucketTalents:     s.Talents,
		BucketAreas:       s.Areas,
		BucketProjects:    s.Projects,
		BucketAllocations: s.Allocations,
	}
}

// BucketTargets maps each bucket name to a pointer suitable for decoding.
func (s *Snapshot) BucketTargets() map[string]any {
	return map[string]any{
		BucketTalents:     &s.Talents,
		BucketAreas:       &s.Areas,
		BucketProjects:    &s.Projects,
		BucketAllocations: &s.Allocations,
	}
}
