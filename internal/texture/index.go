package texture

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Index maps plate names and frame numbers to files. A plate sequence is a
// directory of images whose stems end in the frame number, such as
// "plate_0012.png".
type Index struct {
	single  string
	entries map[string]string // lower-case stem -> path
	frames  map[int]string
}

// BuildIndex indexes path. A file becomes the plate of every frame; a
// directory is scanned recursively for plate images.
func BuildIndex(path string) (*Index, error) {
	idx := &Index{entries: make(map[string]string), frames: make(map[int]string)}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		idx.single = path
		idx.add(path)
		return idx, nil
	}

	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsPlate(p) {
			return nil
		}
		idx.add(p)
		return nil
	})
	return idx, err
}

func (idx *Index) add(path string) {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if existing, ok := idx.entries[stem]; ok && existing < path {
		return
	}
	idx.entries[stem] = path
	if n, ok := trailingNumber(stem); ok {
		if existing, ok := idx.frames[n]; !ok || path < existing {
			idx.frames[n] = path
		}
	}
}

func trailingNumber(stem string) (int, bool) {
	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	if i == len(stem) {
		return 0, false
	}
	n, err := strconv.Atoi(stem[i:])
	return n, err == nil
}

// ResolvePath returns the file of a plate name. Directories and extensions
// in name are ignored.
func (idx *Index) ResolvePath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	path, ok := idx.entries[stem]
	return path, ok
}

// ResolveFrame returns the plate of frame. A single-file index matches every
// frame; a sequence falls back to the nearest earlier frame.
func (idx *Index) ResolveFrame(frame int) (string, bool) {
	if idx.single != "" {
		return idx.single, true
	}
	if p, ok := idx.frames[frame]; ok {
		return p, true
	}
	best, found := 0, false
	for n := range idx.frames {
		if n <= frame && (!found || n > best) {
			best, found = n, true
		}
	}
	if !found {
		return "", false
	}
	return idx.frames[best], true
}

// Frames returns the indexed frame numbers in order.
func (idx *Index) Frames() []int {
	out := make([]int, 0, len(idx.frames))
	for n := range idx.frames {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of indexed plates.
func (idx *Index) Len() int {
	return len(idx.entries)
}
