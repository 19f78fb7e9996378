package treewalk

// Kind is the best-effort node type a lister reports for a directory entry.
// Values mirror the d_type tags returned by getdents(2) only in spirit; they
// are stable on the wire and independent of the host platform.
type Kind uint8

const (
	KindUnknown Kind = iota // lister could not tell; resolved with Lstat
	KindDirectory
	KindRegular
	KindSymlink
	KindOther // fifo, socket, device...
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "dir"
	case KindRegular:
		return "file"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// WorkItem is one pending node of the tree. Every item is processed by
// exactly one rank for the whole run.
type WorkItem struct {
	Path string `cbor:"p"`
	Kind Kind   `cbor:"k,omitempty"`
}

// Color is both a rank's color and the value carried by the ring token.
// The zero value is used for "token not held here".
type Color uint8

const (
	noToken Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// DirEntry is one child reported by FS.ReadDir.
type DirEntry struct {
	Name string
	Kind Kind
}

// FS is the filesystem surface the walker needs: enumerate the immediate
// children of a directory, and stat a path whose type the lister could not
// report. Implementations must not follow symlinks in Lstat.
type FS interface {
	ReadDir(path string) ([]DirEntry, error)
	Lstat(path string) (isDir bool, err error)
}
