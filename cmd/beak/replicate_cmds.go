// cmd/beak/replicate_cmds.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/beakfs/beak/replicate"
)

func cmdList(args []string) error {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		usage()
	}
	remote := fset.Arg(0)

	d := replicate.NewDriver(replicate.ExecSystem{}, replicate.Storage{Location: remote, Type: replicate.RCloneStorage})
	res, rc := d.List()
	if !rc.OK {
		return rc.Err
	}

	for name, fi := range res.Index {
		fmt.Printf("%s\t%d\t%v\n", name, fi.Size, fi.Regular)
	}
	for _, bad := range res.BadFiles {
		log.Warning("%s: size mismatch, needs retransmit\n", bad)
	}
	for _, other := range res.OtherFiles {
		log.Debug("%s: not an archive name, ignoring\n", other)
	}
	return nil
}

func cmdSend(args []string) error {
	fset := flag.NewFlagSet("send", flag.ExitOnError)
	bwlimit := fset.Int("bwlimit", 0, "upload limit, bytes/sec, for replicate's rate-limited readers (0: unlimited); rclone transfers are not throttled by it")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 2 {
		usage()
	}
	srcdir, remote := fset.Arg(0), fset.Arg(1)

	if *bwlimit > 0 {
		replicate.InitBandwidthLimit(*bwlimit, 0)
	}

	entries, err := ioutil.ReadDir(srcdir)
	if err != nil {
		return err
	}
	var paths []string
	sizeOf := make(map[string]int64)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, e.Name())
		sizeOf[e.Name()] = e.Size()
	}

	d := replicate.NewDriver(replicate.ExecSystem{}, replicate.Storage{Location: remote, Type: replicate.RCloneStorage})
	progress, rc := d.Send(paths, sizeOf, srcdir)
	if !rc.OK {
		return rc.Err
	}
	log.Verbose("sent %d files, %d bytes\n", len(progress.Copied), progress.BytesCopied)
	return nil
}

func cmdFetch(args []string) error {
	fset := flag.NewFlagSet("fetch", flag.ExitOnError)
	bwlimit := fset.Int("bwlimit", 0, "download limit, bytes/sec, for replicate's rate-limited readers (0: unlimited); rclone transfers are not throttled by it")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 2 {
		usage()
	}
	remote, destdir := fset.Arg(0), fset.Arg(1)

	if *bwlimit > 0 {
		replicate.InitBandwidthLimit(0, *bwlimit)
	}
	if err := os.MkdirAll(destdir, 0755); err != nil {
		return err
	}

	d := replicate.NewDriver(replicate.ExecSystem{}, replicate.Storage{Location: remote, Type: replicate.RCloneStorage})
	res, rc := d.List()
	if !rc.OK {
		return rc.Err
	}

	var paths []string
	for name := range res.Index {
		paths = append(paths, name)
	}
	rc = d.Fetch(paths, destdir)
	if !rc.OK {
		return rc.Err
	}
	log.Verbose("fetched %d archives into %s\n", len(paths), filepath.Clean(destdir))
	return nil
}
