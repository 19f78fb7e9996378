package treewalk

// Stats are one rank's counters for a run.
type Stats struct {
	Dirs            uint64 `cbor:"d"`
	Files           uint64 `cbor:"f"`
	Errors          uint64 `cbor:"e"`
	Lstats          uint64 `cbor:"ls"`
	RequestsSent    uint64 `cbor:"rq"`
	RepliesEmpty    uint64 `cbor:"re"`
	ItemsReceived   uint64 `cbor:"ir"`
	ItemsGiven      uint64 `cbor:"ig"`
	TokensForwarded uint64 `cbor:"tf"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Dirs += o.Dirs
	s.Files += o.Files
	s.Errors += o.Errors
	s.Lstats += o.Lstats
	s.RequestsSent += o.RequestsSent
	s.RepliesEmpty += o.RepliesEmpty
	s.ItemsReceived += o.ItemsReceived
	s.ItemsGiven += o.ItemsGiven
	s.TokensForwarded += o.TokensForwarded
}
