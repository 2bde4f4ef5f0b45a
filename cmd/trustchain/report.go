package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"xdao.co/trustchain/attest"
	"xdao.co/trustchain/domain"
	"xdao.co/trustchain/keys"
)

func cmdReport(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	switch args[0] {
	case "sign":
		return cmdReportSign(args[1:], out, errOut)
	case "verify":
		return cmdReportVerify(args[1:], out, errOut)
	case "digest":
		return cmdReportDigest(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown report subcommand: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

type domainFlags struct {
	chainID uint64
	module  string
	name    string
	version string
}

func registerDomainFlags(fs *flag.FlagSet) *domainFlags {
	d := &domainFlags{}
	fs.Uint64Var(&d.chainID, "chain-id", 1, "Signing domain chain id")
	fs.StringVar(&d.module, "module", "trustchain", "Signing domain verifying module")
	fs.StringVar(&d.name, "domain-name", "AIScoreOracle", "Signing domain name")
	fs.StringVar(&d.version, "domain-version", "1", "Signing domain version")
	return d
}

func (d *domainFlags) domain() attest.Domain {
	return attest.Domain{Name: d.name, Version: d.version, ChainID: d.chainID, VerifyingModule: d.module}
}

func cmdReportSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("report sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dom := registerDomainFlags(fs)
	dir := keyDirFlag(fs)

	var (
		productID, anomalies, verification string
		seedHex, signerName, signerRole    string
		keyFile, alg, hashAlg              string
		score, deadline                    uint64
		ttl                                time.Duration
	)
	fs.StringVar(&productID, "product", "", "Product id")
	fs.Uint64Var(&score, "score", 0, "Trust score 0-100")
	fs.StringVar(&anomalies, "anomalies", "", "Anomalies digest (0x + 64 hex)")
	fs.StringVar(&verification, "verification", "", "Verification digest (0x + 64 hex)")
	fs.Uint64Var(&deadline, "deadline", 0, "Unix deadline; overrides --ttl")
	fs.DurationVar(&ttl, "ttl", time.Hour, "Deadline relative to now")
	fs.StringVar(&seedHex, "seed-hex", "", "Signing seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file")
	fs.StringVar(&alg, "alg", keys.AlgEd25519, "Signature algorithm (ed25519, dilithium3)")
	fs.StringVar(&hashAlg, "hash", keys.HashSHA256, "Digest algorithm (sha256, sha512, sha3-256)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if productID == "" {
		fmt.Fprintln(errOut, "missing --product")
		return 2
	}
	if score > attest.MaxScore {
		fmt.Fprintf(errOut, "invalid --score: must be at most %d\n", attest.MaxScore)
		return 2
	}
	if seedHex == "" && signerName == "" && keyFile == "" {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex, --signer, or --key-file")
		return 2
	}

	r := attest.TrustReport{ProductID: productID, Score: score, Deadline: deadline}
	if r.Deadline == 0 {
		r.Deadline = uint64(time.Now().Add(ttl).Unix())
	}
	for _, f := range []struct {
		flag string
		val  string
		dst  *domain.Digest
	}{
		{"anomalies", anomalies, &r.AnomaliesDigest},
		{"verification", verification, &r.VerificationDigest},
	} {
		if f.val == "" {
			continue
		}
		d, err := domain.ParseDigest(f.val)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --%s: %v\n", f.flag, err)
			return 2
		}
		*f.dst = d
	}

	ks, ok := openKeyStore(*dir, errOut)
	if !ok {
		return 1
	}
	seed, err := ks.ResolveSeed(seedHex, keyFile, signerName, signerRole)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}
	signer, err := keys.NewSigner(alg, seed)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}
	env, err := attest.Sign(dom.domain(), r, signer, hashAlg)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	raw, err := env.Canonical()
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Issuer-Key: %s\n", signer.IssuerKey())
	_, _ = out.Write(append(raw, '\n'))
	return 0
}

func readEnvelope(path string, errOut io.Writer) (attest.Envelope, bool) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(errOut, "read envelope: %v\n", err)
		return attest.Envelope{}, false
	}
	defer f.Close()
	env, err := attest.ParseEnvelope(f)
	if err != nil {
		fmt.Fprintf(errOut, "parse envelope: %v\n", err)
		return attest.Envelope{}, false
	}
	return env, true
}

func cmdReportVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("report verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dom := registerDomainFlags(fs)
	var attestors stringList
	fs.Var(&attestors, "attestor", "Authorized issuer key (repeatable)")
	nowUnix := fs.Int64("now", 0, "Verify as of this unix time (default: now)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "expected exactly one envelope file")
		return 2
	}
	if len(attestors) == 0 {
		fmt.Fprintln(errOut, "missing --attestor")
		return 2
	}
	env, ok := readEnvelope(fs.Arg(0), errOut)
	if !ok {
		return 2
	}

	now := time.Now
	if *nowUnix != 0 {
		at := time.Unix(*nowUnix, 0)
		now = func() time.Time { return at }
	}
	const cli domain.Address = "cli"
	v := attest.NewVerifier(dom.domain(), cli, now)
	for _, key := range attestors {
		if err := v.AuthorizeAttestor(cli, key); err != nil {
			fmt.Fprintf(errOut, "invalid --attestor %q: %v\n", key, err)
			return 2
		}
	}
	vr, err := v.Verify(env)
	if err != nil {
		fmt.Fprintf(errOut, "REJECTED %s: %v\n", domain.CodeOf(err), err)
		return 1
	}
	fmt.Fprintf(out, "OK product=%s score=%d digest=%s\n", vr.ProductID(), vr.Score(), vr.Digest())
	return 0
}

func cmdReportDigest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("report digest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dom := registerDomainFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "expected exactly one envelope file")
		return 2
	}
	env, ok := readEnvelope(fs.Arg(0), errOut)
	if !ok {
		return 2
	}
	fmt.Fprintln(out, domain.Digest(attest.ReportDigest(dom.domain(), env.Report)))
	return 0
}
