package picker

import "encoding/binary"

// linux_dirent64 layout: d_ino (8), d_off (8), d_reclen (2), d_type (1), d_name.
const direntHeader = 19

// d_type values from dirent.h that the walk distinguishes.
const (
	dtUnknown = 0
	dtDir     = 4
	dtReg     = 8
	dtLnk     = 10
)

type dirent struct {
	name  string
	dtype uint8
}

// parseDirents decodes n bytes of getdents64 output, skipping "." and "..".
// dst is reused.
func parseDirents(buf []byte, n int, dst []dirent) []dirent {
	entries := dst[:0]
	for offset := 0; offset+direntHeader <= n; {
		reclen := int(binary.NativeEndian.Uint16(buf[offset+16:]))
		if reclen == 0 {
			break
		}
		end := min(offset+reclen, n)

		name := buf[offset+direntHeader : end]
		for i, b := range name {
			if b == 0 {
				name = name[:i]
				break
			}
		}
		if s := string(name); s != "." && s != ".." {
			entries = append(entries, dirent{name: s, dtype: buf[offset+18]})
		}
		offset += reclen
	}
	return entries
}
