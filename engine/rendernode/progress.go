package rendernode

// Progress counts the units of a progressive job. A unit is only counted once its
// commands have been submitted (see Lifecycle.Commit), so a failed or discarded
// tick retries the same unit.
type Progress struct {
	total     uint32
	completed uint32
}

// NewProgress returns a job of total units.
func NewProgress(total uint32) Progress {
	return Progress{total: total}
}

func (p *Progress) Total() uint32 {
	return p.total
}

func (p *Progress) Completed() uint32 {
	return p.completed
}

// Next returns the unit the next tick works on.
func (p *Progress) Next() uint32 {
	return p.completed
}

func (p *Progress) Done() bool {
	return p.completed >= p.total
}

// Advance counts one finished unit.
//
// Returns:
//   - bool: false if the job was already done
func (p *Progress) Advance() bool {
	if p.Done() {
		return false
	}
	p.completed++
	return true
}
