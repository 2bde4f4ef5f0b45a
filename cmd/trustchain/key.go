package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"io"

	"xdao.co/trustchain/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "trustchain key: local attestor and admin keys")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  trustchain key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  trustchain key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  trustchain key list")
	fmt.Fprintln(w, "  trustchain key export --name <name> [--role <role>] [--alg ed25519|dilithium3]")
}

func keyDirFlag(fs *flag.FlagSet) *string {
	return fs.String("key-dir", "", "Key store directory (default ~/.trustchain/keys)")
}

func openKeyStore(dir string, errOut io.Writer) (*keys.KeyStore, bool) {
	ks, err := keys.OpenKeyStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return nil, false
	}
	return ks, true
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := keyDirFlag(fs)
	name := fs.String("name", "", "Key name (directory under the key store)")
	seedHex := fs.String("seed-hex", "", "Optional seed as 64 hex chars (for reproducible demos)")
	force := fs.Bool("force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckName(*name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}

	var seed []byte
	if *seedHex != "" {
		var err error
		if seed, err = keys.ParseSeedHex(*seedHex); err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else {
		seed = make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	ks, ok := openKeyStore(*dir, errOut)
	if !ok {
		return 1
	}
	issuer, path, err := ks.InitRoot(*name, seed, *force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", issuer)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := keyDirFlag(fs)
	from := fs.String("from", "", "Root key name")
	role := fs.String("role", "", "Role identifier (e.g. oracle, admin)")
	force := fs.Bool("force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if *role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	ks, ok := openKeyStore(*dir, errOut)
	if !ok {
		return 1
	}
	issuer, path, err := ks.DeriveRole(*from, *role, *force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", issuer)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := keyDirFlag(fs)
	name := fs.String("name", "", "Key name")
	role := fs.String("role", "", "Optional role (exports the derived role key)")
	alg := fs.String("alg", keys.AlgEd25519, "Signature algorithm the key is used with")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	ks, ok := openKeyStore(*dir, errOut)
	if !ok {
		return 1
	}
	signer, err := ks.Signer(*name, *role, *alg)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, signer.IssuerKey())
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := keyDirFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, ok := openKeyStore(*dir, errOut)
	if !ok {
		return 1
	}
	ids, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, id := range ids {
		fmt.Fprintln(out, id.Name)
		for _, r := range id.Roles {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}
