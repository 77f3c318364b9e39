// cmd/beak_e2etest/main.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Based on endtoendtest.go, which is Copyright(c) 2015 Google, Inc., part
// of skicka, and is licensed under the Apache License, Version 2.0.

package main

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var nDirs = 1

func main() {
	seed := os.Getpid()
	log.Printf("Seed %d", seed)
	rand.Seed(int64(seed))

	iters := 5
	if len(os.Args) > 1 {
		fmt.Sscanf(os.Args[1], "%d", &iters)
	}
	if err := run(iters); err != nil {
		log.Fatalf("%s", err)
	}
	log.Printf("PASS")
}

func run(iters int) error {
	for i := 0; i < iters; i++ {
		if err := oneRound(i); err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
	}
	return nil
}

func oneRound(i int) error {
	src, err := ioutil.TempDir("", "beak-e2e-src")
	if err != nil {
		return err
	}
	defer os.RemoveAll(src)

	dst, err := ioutil.TempDir("", "beak-e2e-dst")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dst)

	extract, err := ioutil.TempDir("", "beak-e2e-extract")
	if err != nil {
		return err
	}
	defer os.RemoveAll(extract)

	if err := populate(src); err != nil {
		return err
	}

	log.Printf("round %d: packing %s into %s", i, src, dst)
	if out, err := runCommand("beak", "pack", src, dst); err != nil {
		return fmt.Errorf("beak pack: %w (%s)", err, out)
	}

	archive, err := findDataArchive(dst)
	if err != nil {
		return err
	}

	if err := extractWithStdlibTar(archive, extract); err != nil {
		return err
	}

	return compare(src, extract)
}

func runCommand(c string, args ...string) (string, error) {
	log.Printf("running %s %v", c, args)
	cmd := exec.Command(c, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// findDataArchive locates the single unsplit data-part file that
// cmdPack wrote, distinguishing it from the gzipped index/catalogue
// file by its "s"-prefixed name.
func findDataArchive(dir string) (string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "s") && strings.HasSuffix(e.Name(), ".tar") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no data archive found in %s", dir)
}

// extractWithStdlibTar reads a single-part beak archive with the
// standard library's tar reader, confirming beak's on-disk format is
// plain ustar and not merely readable by beak's own codec.
func extractWithStdlibTar(archive, destDir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		path := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("extractWithStdlibTar: unsupported typeflag %c for %s", hdr.Typeflag, hdr.Name)
		}

		modTime := hdr.ModTime
		if hdr.Typeflag != tar.TypeSymlink {
			if err := os.Chtimes(path, modTime, modTime); err != nil {
				return err
			}
		}
	}
}

///////////////////////////////////////////////////////////////////////////

var createdFiles = make(map[string]bool)

func name(dir string) string {
	fodder := []string{"car", "house", "food", "cat", "monkey", "bird", "yellow",
		"blue", "fast", "sky", "table", "pen", "round", "book", "towel", "hair",
		"laugh", "airplane", "bannana", "tape", "round"}
	s := ""
	for {
		s += fodder[rand.Intn(len(fodder))]
		if _, ok := createdFiles[s]; !ok {
			break
		}
		s += "_"
	}
	createdFiles[s] = true
	return filepath.Join(dir, s)
}

func expSize() int64 {
	logSize := rand.Intn(16) - 1
	s := int64(0)
	if logSize >= 0 {
		s = 1 << uint(logSize)
		s += rand.Int63n(s + 1)
	}
	return s
}

// populate fills dir with a small randomly shaped tree of files,
// subdirectories and symlinks.
func populate(dir string) error {
	filesLeftToCreate := 15
	dirsLeftToCreate := 4

	return filepath.Walk(dir, func(path string, stat os.FileInfo, patherr error) error {
		if patherr != nil {
			return patherr
		}
		if !stat.IsDir() {
			return nil
		}

		dirsToCreate := 0
		for i := 0; i < dirsLeftToCreate; i++ {
			if rand.Intn(nDirs) == 0 {
				dirsToCreate++
				n := name(path)
				if err := os.Mkdir(n, 0700); err != nil {
					return err
				}
			}
		}
		nDirs += dirsToCreate
		dirsLeftToCreate -= dirsToCreate

		filesToCreate := 0
		for i := 0; i < filesLeftToCreate; i++ {
			if rand.Intn(nDirs) == 0 {
				filesToCreate++
				n := name(path)
				f, err := os.Create(n)
				if err != nil {
					return err
				}
				buf := make([]byte, expSize())
				_, _ = rand.Read(buf)
				if _, err := f.Write(buf); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}

				// Back-date the modtime so beak's mtime-based naming has
				// something other than "now" to chew on.
				mt := time.Now().Add(-time.Duration(rand.Intn(1e9)) * time.Second)
				if err := os.Chtimes(n, mt, mt); err != nil {
					return err
				}
			}
		}
		filesLeftToCreate -= filesToCreate
		return nil
	})
}

// compare walks patha and confirms every regular file, directory and
// symlink has a matching counterpart in pathb with the same contents.
func compare(patha, pathb string) error {
	mismatches := 0
	err := filepath.Walk(patha, func(pa string, stata os.FileInfo, patherr error) error {
		if patherr != nil {
			return patherr
		}
		if pa == patha {
			return nil
		}

		rest := strings.TrimPrefix(pa, patha)
		pb := filepath.Join(pathb, rest)

		statb, err := os.Lstat(pb)
		if os.IsNotExist(err) {
			log.Printf("%s: not found", pb)
			mismatches++
			return nil
		} else if err != nil {
			return err
		}

		if stata.IsDir() != statb.IsDir() {
			log.Printf("%s: file/directory mismatch with %s", pa, pb)
			mismatches++
			return nil
		}
		if stata.IsDir() {
			return nil
		}

		ca, err := ioutil.ReadFile(pa)
		if err != nil {
			return err
		}
		cb, err := ioutil.ReadFile(pb)
		if err != nil {
			return err
		}
		if !bytes.Equal(ca, cb) {
			log.Printf("%s and %s differ", pa, pb)
			mismatches++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if mismatches > 0 {
		return fmt.Errorf("%d file mismatches", mismatches)
	}
	return nil
}
