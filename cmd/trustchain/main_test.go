package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const seedHex = "0101010101010101010101010101010101010101010101010101010101010101"

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestUsage(t *testing.T) {
	if _, _, code := runCLI(t); code != 2 {
		t.Fatalf("no args exit = %d", code)
	}
	if out, _, code := runCLI(t, "help"); code != 0 || !strings.Contains(out, "report sign") {
		t.Fatalf("help = %q (%d)", out, code)
	}
	if _, errOut, code := runCLI(t, "bogus"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("bogus = %q (%d)", errOut, code)
	}
}

func TestKeyLifecycle(t *testing.T) {
	dir := t.TempDir()
	out, errOut, code := runCLI(t, "key", "init", "--key-dir", dir, "--name", "oracle", "--seed-hex", seedHex)
	if code != 0 {
		t.Fatalf("init: %s", errOut)
	}
	if !strings.Contains(out, "ed25519:") {
		t.Fatalf("init output = %q", out)
	}
	if _, errOut, code = runCLI(t, "key", "derive", "--key-dir", dir, "--from", "oracle", "--role", "scorer"); code != 0 {
		t.Fatalf("derive: %s", errOut)
	}
	out, _, code = runCLI(t, "key", "list", "--key-dir", dir)
	if code != 0 || out != "oracle\n  - scorer\n" {
		t.Fatalf("list = %q (%d)", out, code)
	}
	out, _, code = runCLI(t, "key", "export", "--key-dir", dir, "--name", "oracle", "--role", "scorer", "--alg", "dilithium3")
	if code != 0 || !strings.HasPrefix(out, "dilithium3:") {
		t.Fatalf("export = %q (%d)", out, code)
	}
}

func TestReportSignVerifyDigest(t *testing.T) {
	dir := t.TempDir()
	out, errOut, code := runCLI(t, "report", "sign", "--product", "P1", "--score", "88",
		"--seed-hex", seedHex, "--deadline", "4102444800", "--chain-id", "7")
	if code != 0 {
		t.Fatalf("sign: %s", errOut)
	}
	issuer := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(errOut), "Issuer-Key:"))
	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, errOut, code = runCLI(t, "report", "verify", "--chain-id", "7", "--attestor", issuer, path)
	if code != 0 || !strings.Contains(out, "OK product=P1 score=88") {
		t.Fatalf("verify = %q %q (%d)", out, errOut, code)
	}
	if _, errOut, code = runCLI(t, "report", "verify", "--chain-id", "8", "--attestor", issuer, path); code != 1 || !strings.Contains(errOut, "BAD_SIGNATURE") {
		t.Fatalf("cross-domain verify = %q (%d)", errOut, code)
	}
	if _, errOut, code = runCLI(t, "report", "verify", "--chain-id", "7", "--attestor", issuer, "--now", "4102444801", path); code != 1 || !strings.Contains(errOut, "REPORT_EXPIRED") {
		t.Fatalf("expired verify = %q (%d)", errOut, code)
	}

	out, _, code = runCLI(t, "report", "digest", "--chain-id", "7", path)
	if code != 0 || !strings.HasPrefix(out, "0x") || len(strings.TrimSpace(out)) != 66 {
		t.Fatalf("digest = %q (%d)", out, code)
	}
}

func TestEvidenceAndBundle(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "cas")
	file := filepath.Join(dir, "photo.bin")
	if err := os.WriteFile(file, []byte("broken seal"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, errOut, code := runCLI(t, "evidence", "put", "--localfs-dir", store, file)
	if code != 0 {
		t.Fatalf("put: %s", errOut)
	}
	ref := strings.TrimSpace(out)

	out, errOut, code = runCLI(t, "evidence", "get", "--localfs-dir", store, ref)
	if code != 0 || out != "broken seal" {
		t.Fatalf("get = %q %q (%d)", out, errOut, code)
	}

	tarPath := filepath.Join(dir, "p1.tar")
	if _, errOut, code = runCLI(t, "bundle", "export", "--localfs-dir", store, "--product", "P1", "--label", "evidence="+ref, "--out", tarPath); code != 0 {
		t.Fatalf("export: %s", errOut)
	}
	other := filepath.Join(dir, "cas2")
	out, errOut, code = runCLI(t, "bundle", "import", "--localfs-dir", other, tarPath)
	if code != 0 || !strings.Contains(out, "evidence "+ref) {
		t.Fatalf("import = %q %q (%d)", out, errOut, code)
	}
}

func TestSimulate(t *testing.T) {
	out, errOut, code := runCLI(t, "simulate")
	if code != 0 {
		t.Fatalf("simulate: %s", errOut)
	}
	if !strings.Contains(out, "settlement tier high, bonus 25") || !strings.Contains(out, "reward pool=975") {
		t.Fatalf("high-trust simulation:\n%s", out)
	}

	out, errOut, code = runCLI(t, "simulate", "--score", "30", "--fraud", "--forfeit", "60")
	if code != 0 {
		t.Fatalf("simulate fraud: %s", errOut)
	}
	if !strings.Contains(out, "dispute resolved_fraud, forfeited 60") || !strings.Contains(out, "reward pool=1060") {
		t.Fatalf("fraud simulation:\n%s", out)
	}
}
