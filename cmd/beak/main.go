// cmd/beak/main.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// beak packs a directory tree into a sequence of content-addressed tar
// archives, can replicate them to a remote store, and can reverse-mount a
// directory of archives so they can be browsed like a regular filesystem.
package main

import (
	"fmt"
	"os"

	"github.com/beakfs/beak/replicate"
	u "github.com/beakfs/beak/util"
)

var log *u.Logger

func usage() {
	fmt.Fprintln(os.Stderr, "usage: beak pack [--split n] [--multivol] <srcdir> <destdir>")
	fmt.Fprintln(os.Stderr, "usage: beak list <remote>")
	fmt.Fprintln(os.Stderr, "usage: beak send [--bwlimit n] <srcdir> <remote>")
	fmt.Fprintln(os.Stderr, "usage: beak fetch <remote> <destdir>")
	fmt.Fprintln(os.Stderr, "usage: beak mount <archivedir> <mountpoint>")
	fmt.Fprintln(os.Stderr, "usage: beak fsck <--encode,--check,--restore> <archive...>")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	verbose := os.Getenv("BEAK_VERBOSE") != ""
	log = u.NewLogger(verbose, false /*debug*/)
	replicate.SetLogger(log)

	var err error
	switch os.Args[1] {
	case "pack":
		err = cmdPack(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "send":
		err = cmdSend(os.Args[2:])
	case "fetch":
		err = cmdFetch(os.Args[2:])
	case "mount":
		err = cmdMount(os.Args[2:])
	case "fsck":
		err = cmdFsck(os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		log.Error("%s", err)
		os.Exit(1)
	}
}
