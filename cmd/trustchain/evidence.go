package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/bundle"
	"xdao.co/trustchain/storage/casregistry"
)

// archiveFlags registers the backend selector and opens the chosen archive
// after parsing.
type archiveFlags struct {
	backend *string
}

func registerArchiveFlags(fs *flag.FlagSet) archiveFlags {
	return archiveFlags{backend: casregistry.RegisterFlags(fs, casregistry.UsageCLI, "localfs")}
}

func (a archiveFlags) open(errOut io.Writer) (*storage.Archive, func() error, bool) {
	cas, closeFn, err := casregistry.Open(*a.backend, casregistry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "archive: %v\n", err)
		return nil, nil, false
	}
	return storage.NewArchive(cas), closeFn, true
}

func cmdEvidence(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	switch args[0] {
	case "put":
		return cmdEvidencePut(args[1:], out, errOut)
	case "get":
		return cmdEvidenceGet(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown evidence subcommand: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func cmdEvidencePut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("evidence put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := registerArchiveFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "expected exactly one file")
		return 2
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	archive, closeFn, ok := af.open(errOut)
	if !ok {
		return 2
	}
	defer closeFn()
	ref, err := archive.Put(context.Background(), data)
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, ref)
	return 0
}

func cmdEvidenceGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("evidence get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := registerArchiveFlags(fs)
	outPath := fs.String("out", "", "Write to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "expected exactly one CID")
		return 2
	}
	archive, closeFn, ok := af.open(errOut)
	if !ok {
		return 2
	}
	defer closeFn()
	data, err := archive.Get(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "get: %v\n", err)
		return 1
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			fmt.Fprintf(errOut, "write: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = out.Write(data)
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	case "import":
		return cmdBundleImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := registerArchiveFlags(fs)
	productID := fs.String("product", "", "Product id")
	outPath := fs.String("out", "", "Output TAR file")
	var labels stringList
	fs.Var(&labels, "label", "Block label as name=<cid> (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *productID == "" || *outPath == "" {
		fmt.Fprintln(errOut, "missing --product or --out")
		return 2
	}
	m := bundle.Manifest{ProductID: *productID, Labels: map[string]string{}}
	for _, l := range labels {
		name, ref, ok := strings.Cut(l, "=")
		if !ok || name == "" || ref == "" {
			fmt.Fprintf(errOut, "invalid --label %q (want name=<cid>)\n", l)
			return 2
		}
		m.Labels[name] = ref
	}
	archive, closeFn, ok := af.open(errOut)
	if !ok {
		return 2
	}
	defer closeFn()

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create: %v\n", err)
		return 1
	}
	if err := bundle.Export(context.Background(), f, archive.CAS(), m); err != nil {
		_ = f.Close()
		_ = os.Remove(*outPath)
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "close: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Wrote %s (%d blocks)\n", *outPath, len(m.Labels))
	return 0
}

func cmdBundleImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	af := registerArchiveFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "expected exactly one bundle file")
		return 2
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open: %v\n", err)
		return 1
	}
	defer f.Close()
	archive, closeFn, ok := af.open(errOut)
	if !ok {
		return 2
	}
	defer closeFn()
	m, err := bundle.Import(context.Background(), f, archive.CAS())
	if err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	names := make([]string, 0, len(m.Labels))
	for name := range m.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(out, "product %s\n", m.ProductID)
	for _, name := range names {
		fmt.Fprintf(out, "  %s %s\n", name, m.Labels[name])
	}
	return 0
}
