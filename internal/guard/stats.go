package guard

// Stats is a snapshot of a controller's admission counters.
type Stats struct {
	// Immediate counts requests admitted on arrival.
	Immediate uint64 `json:"immediate"`

	// Queued counts requests that had to park.
	Queued uint64 `json:"queued"`

	// Withdrawn counts parked requests whose context ended first.
	Withdrawn uint64 `json:"withdrawn"`

	// AdmittedReads and AdmittedWrites count admissions by kind, including
	// admissions handed back by a withdrawing caller.
	AdmittedReads  uint64 `json:"admitted_reads"`
	AdmittedWrites uint64 `json:"admitted_writes"`

	// MaxConcurrentReads is the highest number of reads ever admitted at once.
	MaxConcurrentReads int `json:"max_concurrent_reads"`

	// Live state at snapshot time.
	ActiveReaders int  `json:"active_readers"`
	WriterActive  bool `json:"writer_active"`
	Waiting       int  `json:"waiting"`
}
