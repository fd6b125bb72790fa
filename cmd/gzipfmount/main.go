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

// Command gzipfmount exposes the members of a GZIP file as a read-only
// file tree served over HTTP, one file per member.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	gzipf "github.com/ZaparooProject/go-gzipf"
)

var (
	showHelp        = flag.Bool("h", false, "show usage and exit")
	verbose         = flag.Bool("v", false, "verbose output")
	showVersion     = flag.Bool("V", false, "print version and exit")
	extendedOptions = flag.String("X", "", "extended options, comma separated (listen=ADDR)")
)

const appVersion = "0.1.0"

const defaultListenAddress = "127.0.0.1:8427"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-hvV] [-X extended_options] <source> <mount_point>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Serves the members of a GZIP file as a read-only file tree\n")
		fmt.Fprintf(os.Stderr, "over HTTP. The mount point is the URL path the tree appears\n")
		fmt.Fprintf(os.Stderr, "under.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExtended options:\n")
		fmt.Fprintf(os.Stderr, "  listen=ADDR  address to serve on (default %s)\n", defaultListenAddress)
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("gzipfmount version %s\n", appVersion)
		os.Exit(0)
	}

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path, mountPoint string) error {
	listenAddress, err := parseExtendedOptions(*extendedOptions)
	if err != nil {
		return err
	}

	file, err := gzipf.Open(path)
	if err != nil {
		return err //nolint:wrapcheck // Top-level error passthrough is intentional
	}
	defer func() { _ = file.Close() }()

	fsys, err := file.FS()
	if err != nil {
		return err //nolint:wrapcheck // Top-level error passthrough is intentional
	}

	prefix := "/" + strings.Trim(mountPoint, "/")
	if prefix == "/" {
		prefix = ""
	}

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix+"/", http.FileServer(http.FS(fsys))))

	if *verbose {
		fmt.Printf("Serving %s under http://%s%s/\n", path, listenAddress, prefix)
	}

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// parseExtendedOptions parses the -X option list.
func parseExtendedOptions(options string) (string, error) {
	listenAddress := defaultListenAddress

	for _, option := range strings.Split(options, ",") {
		if option == "" {
			continue
		}
		key, value, found := strings.Cut(option, "=")
		if !found || key != "listen" || value == "" {
			return "", fmt.Errorf("unsupported extended option: %q", option)
		}
		listenAddress = value
	}
	return listenAddress, nil
}
