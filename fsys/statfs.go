package fsys

import "fmt"

// Magic is a filesystem type as reported by statfs(2) f_type.
type Magic uint64

const (
	MagicLustre  Magic = 0x0bd00bd0
	MagicNFS     Magic = 0x6969
	MagicExt4    Magic = 0xef53 // ext2/ext3 share it
	MagicXFS     Magic = 0x58465342
	MagicBtrfs   Magic = 0x9123683e
	MagicTmpfs   Magic = 0x01021994
	MagicGPFS    Magic = 0x47504653
	MagicBeeGFS  Magic = 0x19830326
	MagicCephFS  Magic = 0x00c36400
	MagicZFS     Magic = 0x2fc12fc1
	MagicCIFS    Magic = 0xff534d42
	MagicOverlay Magic = 0x794c7630
	MagicProc    Magic = 0x9fa0
)

var magicNames = map[Magic]string{
	MagicLustre:  "lustre",
	MagicNFS:     "nfs",
	MagicExt4:    "ext4",
	MagicXFS:     "xfs",
	MagicBtrfs:   "btrfs",
	MagicTmpfs:   "tmpfs",
	MagicGPFS:    "gpfs",
	MagicBeeGFS:  "beegfs",
	MagicCephFS:  "cephfs",
	MagicZFS:     "zfs",
	MagicCIFS:    "cifs",
	MagicOverlay: "overlay",
	MagicProc:    "proc",
}

func (m Magic) String() string {
	if n, ok := magicNames[m]; ok {
		return n
	}
	return fmt.Sprintf("%#x", uint64(m))
}

// Parallel reports whether m is a networked or parallel filesystem, where
// per-entry latency dominates and spreading a walk over many ranks pays off.
func (m Magic) Parallel() bool {
	switch m {
	case MagicLustre, MagicNFS, MagicGPFS, MagicBeeGFS, MagicCephFS, MagicCIFS:
		return true
	}
	return false
}
