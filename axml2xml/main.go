package main

import (
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/avast/apkres"
)

func main() {
	isApk := flag.Bool("a", false, "The input file is an apk")
	file := flag.String("f", "AndroidManifest.xml", "Which file to dump from the apk")
	locale := flag.String("l", "", "Resolve references for this BCP-47 locale (apk only)")
	verbose := flag.Bool("v", false, "Log warnings about malformed input")

	flag.Parse()

	if len(flag.Args()) != 1 {
		fmt.Printf("%s INPUT\n", os.Args[0])
		os.Exit(1)
	}

	if *verbose {
		apkres.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())
	}

	var r io.Reader
	var resources *apkres.ResourceTable
	input := flag.Args()[0]

	if strings.HasSuffix(input, ".apk") {
		*isApk = true
	}

	if input == "-" {
		r = os.Stdin
	} else if *isApk {
		zr, err := apkres.OpenZip(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer zr.Close()

		resources, err = loadResources(zr, *locale)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to parse resources:", err)
		}

		zrf := zr.File[*file]
		if zrf == nil {
			fmt.Fprintf(os.Stderr, "Failed to find %s\n", *file)
			os.Exit(1)
		}

		if err := zrf.Open(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer zrf.Close()

		zrf.Next()
		r = zrf
	} else {
		f, err := os.Open(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	enc := xml.NewEncoder(os.Stdout)
	enc.Indent("", "    ")

	err := apkres.ParseXml(r, enc, resources)
	fmt.Println()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadResources(zr *apkres.ZipReader, locale string) (*apkres.ResourceTable, error) {
	data, err := zr.Open("resources.arsc")
	if err != nil {
		return nil, err
	}

	resources := apkres.NewResourceTable()
	if err := resources.Add(data, 0, false); err != nil {
		return nil, err
	}

	var config apkres.ResTableConfig
	if err := config.SetBCP47Locale(locale); err != nil {
		return nil, err
	}
	resources.SetParameters(&config)
	return resources, nil
}
