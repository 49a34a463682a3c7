package domain

// QuotaUsage reports current indexed counts and caps per source kind.
// Ingestion consults it once per run, before any enumeration.
type QuotaUsage struct {
	PhotoCount int
	PhotoCap   int
	FileCount  int
	FileCap    int
}

// PhotoRemaining returns how many more photos may be indexed.
func (q QuotaUsage) PhotoRemaining() int {
	if r := q.PhotoCap - q.PhotoCount; r > 0 {
		return r
	}
	return 0
}

// FileRemaining returns how many more files may be indexed.
func (q QuotaUsage) FileRemaining() int {
	if r := q.FileCap - q.FileCount; r > 0 {
		return r
	}
	return 0
}
