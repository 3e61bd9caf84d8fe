// Command mkdisk builds a raw ATA disk image for the kernel: a zeroed image
// of the requested size, with the catalog freshly initialized (sentinel
// entry only -- there are no stock program headers to rescue in a brand new
// image) and then populated with every regular file found under a skeleton
// directory.
//
// Grounded on biscuit's src/mkfs/mkfs.go: a host-side tool that builds a
// disk image, then walks a skeleton directory and copies its files in. Here
// the target filesystem is the flat catalog (src/catalog) instead of ufs,
// so there is no inode tree to walk -- every file becomes one catalog
// entry, named by its path relative to the skeleton directory.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vos5/src/catalog"
)

// fileDisk adapts an *os.File to catalog.Disk by seeking to the byte offset
// of the requested LBA before each transfer.
type fileDisk struct {
	f *os.File
}

func (d *fileDisk) ReadSectors(lba uint32, sectorCount uint8, dst []byte) {
	n := int(sectorCount) * catalog.SectorSize
	if _, err := d.f.ReadAt(dst[:n], int64(lba)*catalog.SectorSize); err != nil {
		panic(err)
	}
}

func (d *fileDisk) WriteSectors(lba uint32, sectorCount uint8, src []byte) {
	n := int(sectorCount) * catalog.SectorSize
	if _, err := d.f.WriteAt(src[:n], int64(lba)*catalog.SectorSize); err != nil {
		panic(err)
	}
}

// addFiles walks skelDir on the host and writes every regular file it finds
// into cat, named by its path relative to skelDir with OS separators
// normalized to "/".
func addFiles(cat *catalog.Catalog, skelDir string) error {
	return filepath.WalkDir(skelDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(skelDir, path)
		if err != nil {
			return err
		}
		rel = strings.ReplaceAll(rel, string(filepath.Separator), "/")

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		cat.Write(rel, data)
		fmt.Printf("wrote %s (%d bytes)\n", rel, len(data))
		return nil
	})
}

func main() {
	if len(os.Args) < 4 {
		fmt.Printf("Usage: mkdisk <output image> <size in sectors> <skel dir>\n")
		os.Exit(1)
	}

	image := os.Args[1]
	sectors, err := strconv.Atoi(os.Args[2])
	if err != nil || sectors <= 0 {
		fmt.Printf("invalid sector count %q\n", os.Args[2])
		os.Exit(1)
	}
	skelDir := os.Args[3]

	f, err := os.Create(image)
	if err != nil {
		fmt.Printf("failed to create %q: %v\n", image, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := f.Truncate(int64(sectors) * catalog.SectorSize); err != nil {
		fmt.Printf("failed to size %q: %v\n", image, err)
		os.Exit(1)
	}

	cat := catalog.New(&fileDisk{f: f})
	cat.Load()

	if err := addFiles(cat, skelDir); err != nil {
		fmt.Printf("error walking %q: %v\n", skelDir, err)
		os.Exit(1)
	}
}
