// cmd/beak/fsck.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

import (
	"errors"
	"flag"
	"strings"

	"github.com/beakfs/beak/parity"
)

func cmdFsck(args []string) error {
	fset := flag.NewFlagSet("fsck", flag.ExitOnError)
	encode := fset.Bool("encode", false, "write a .rs parity file for each archive")
	check := fset.Bool("check", false, "verify each archive against its .rs parity file")
	restore := fset.Bool("restore", false, "reconstruct a corrupted archive from its .rs parity file")
	nShards := fset.Int("nshards", 17, "number of data shards")
	nParity := fset.Int("nparity", 3, "number of parity shards")
	hashRate := fset.Int64("hashrate", 1024*1024, "chunk size for shard hashes")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() == 0 {
		usage()
	}

	nModes := 0
	for _, b := range []bool{*encode, *check, *restore} {
		if b {
			nModes++
		}
	}
	if nModes != 1 {
		return errors.New("beak fsck: exactly one of --encode, --check, --restore is required")
	}

	for _, fn := range fset.Args() {
		if strings.HasSuffix(fn, ".rs") {
			log.Verbose("%s: skipping, already a parity file\n", fn)
			continue
		}
		rsfn := fn + ".rs"

		switch {
		case *encode:
			if err := parity.Encode(fn, rsfn, *nShards, *nParity, *hashRate); err != nil {
				log.Error("%s: %s\n", fn, err)
				continue
			}
			log.Verbose("%s: wrote parity file\n", rsfn)
		case *check:
			if err := parity.Check(fn, rsfn, log); err != nil {
				log.Error("%s: %s\n", fn, err)
			}
		case *restore:
			if err := parity.Restore(fn, rsfn, log); err != nil {
				log.Error("%s: %s\n", fn, err)
			}
		}
	}
	return nil
}
