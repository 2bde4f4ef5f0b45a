// Command trustchain is the operator CLI: attestor key management, trust
// report signing and verification, evidence archiving and an in-process
// settlement simulator.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	_ "xdao.co/trustchain/storage/grpccas"
	_ "xdao.co/trustchain/storage/localfs"
	_ "xdao.co/trustchain/storage/memcas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "report":
		return cmdReport(args[1:], out, errOut)
	case "evidence":
		return cmdEvidence(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "simulate":
		return cmdSimulate(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "trustchain: supply-chain trust settlement tools")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  trustchain key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  trustchain key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  trustchain key list")
	fmt.Fprintln(w, "  trustchain key export --name <name> [--role <role>] [--alg ed25519|dilithium3]")
	fmt.Fprintln(w, "  trustchain report sign --product <id> --score <0-100> (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>) [--deadline <unix> | --ttl <dur>]")
	fmt.Fprintln(w, "  trustchain report verify --attestor <issuer-key> [--attestor ...] <envelope.json>")
	fmt.Fprintln(w, "  trustchain report digest <envelope.json>")
	fmt.Fprintln(w, "  trustchain evidence put [--backend <name>] <file>")
	fmt.Fprintln(w, "  trustchain evidence get [--backend <name>] [--out <file>] <cid>")
	fmt.Fprintln(w, "  trustchain bundle export --product <id> --label name=<cid> [--label ...] --out <file.tar>")
	fmt.Fprintln(w, "  trustchain bundle import <file.tar>")
	fmt.Fprintln(w, "  trustchain simulate [--score <0-100>] [--fraud] [--forfeit <n>] [--penalty-sink <addr>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars)")
	fmt.Fprintln(w, "  - keys are stored under ~/.trustchain/keys/<name> unless --key-dir is set")
	fmt.Fprintln(w, "  - report commands sign over the domain given by --chain-id, --module, --domain-name and --domain-version")
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
