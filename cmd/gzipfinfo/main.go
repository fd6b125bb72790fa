// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-gzipf.
//
// go-gzipf is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-gzipf is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-gzipf.  If not, see <https://www.gnu.org/licenses/>.

// Command gzipfinfo lists the members of a GZIP file and their header
// metadata.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	gzipf "github.com/ZaparooProject/go-gzipf"
)

var (
	showHelp    = flag.Bool("h", false, "show usage and exit")
	verbose     = flag.Bool("v", false, "verbose output")
	showVersion = flag.Bool("V", false, "print version and exit")
)

const appVersion = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-hvV] <source>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Lists the members of a GZIP file and their metadata.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("gzipfinfo version %s\n", appVersion)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	file, err := gzipf.Open(path)
	if err != nil {
		return err //nolint:wrapcheck // Top-level error passthrough is intentional
	}
	defer func() { _ = file.Close() }()

	count, err := file.MemberCount()
	if err != nil {
		return err //nolint:wrapcheck // Top-level error passthrough is intentional
	}
	size, err := file.UncompressedSize()
	if err != nil {
		return err //nolint:wrapcheck // Top-level error passthrough is intentional
	}

	fmt.Printf("gzipfinfo version %s\n\n", appVersion)
	fmt.Printf("GZIP file information:\n")
	fmt.Printf("    Number of members    : %d\n", count)
	if *verbose {
		fmt.Printf("    Uncompressed size    : %d bytes\n", size)
		fmt.Printf("    Corrupted            : %t\n", file.IsCorrupted())
	}
	fmt.Println()

	for i := 0; i < count; i++ {
		member, err := file.Member(i)
		if err != nil {
			return err //nolint:wrapcheck // Top-level error passthrough is intentional
		}
		printMember(i, member)
	}

	if file.IsCorrupted() {
		fmt.Fprintf(os.Stderr, "Warning: file is corrupted, listing may be incomplete\n")
	}
	return nil
}

func printMember(index int, member *gzipf.Member) {
	fmt.Printf("Member: %d\n", index+1)

	if name, ok := member.Name(); ok {
		fmt.Printf("    Name                 : %s\n", name)
	}
	if mtime := member.ModificationTime(); mtime != 0 {
		fmt.Printf("    Modification time    : %s\n",
			time.Unix(int64(mtime), 0).UTC().Format("Jan 02, 2006 15:04:05 UTC"))
	}
	fmt.Printf("    Operating system     : %d (%s)\n",
		member.OperatingSystem(), member.OperatingSystemString())
	if comments, ok := member.Comments(); ok {
		fmt.Printf("    Comments             : %s\n", comments)
	}
	if *verbose {
		fmt.Printf("    Uncompressed size    : %d bytes\n", member.UncompressedSize())
		if member.HasDecompressionError() {
			fmt.Printf("    Decompression error  : true\n")
		}
	}
	fmt.Println()
}
