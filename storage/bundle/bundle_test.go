package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"

	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/memcas"
)

func seed(t *testing.T, cas storage.CAS, blobs ...string) []string {
	t.Helper()
	out := make([]string, 0, len(blobs))
	for _, b := range blobs {
		id, err := cas.Put(context.Background(), []byte(b))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		out = append(out, id.String())
	}
	return out
}

func TestExportIsDeterministicAndImports(t *testing.T) {
	ctx := context.Background()
	src := memcas.New()
	refs := seed(t, src, `{"report":"signed"}`, "evidence bytes")
	m := Manifest{ProductID: "SKU-9", Labels: map[string]string{"report": refs[0], "evidence": refs[1]}}

	var a, b bytes.Buffer
	if err := Export(ctx, &a, src, m); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := Export(ctx, &b, src, m); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("export is not deterministic")
	}

	dst := memcas.New()
	got, err := Import(ctx, bytes.NewReader(a.Bytes()), dst)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got.ProductID != "SKU-9" || got.Labels["report"] != refs[0] || got.Labels["evidence"] != refs[1] {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if dst.Len() != 2 {
		t.Fatalf("expected 2 blobs imported, got %d", dst.Len())
	}
}

func TestExportMissingBlob(t *testing.T) {
	src := memcas.New()
	other := memcas.New()
	refs := seed(t, other, "elsewhere")
	err := Export(context.Background(), &bytes.Buffer{}, src, Manifest{ProductID: "p", Labels: map[string]string{"evidence": refs[0]}})
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestImportRejectsTamperedBlock(t *testing.T) {
	ref := seed(t, memcas.New(), "genuine")[0]
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeFile(tw, "blocks/"+ref, []byte("forged")); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	_ = tw.Close()
	if _, err := Import(context.Background(), &buf, memcas.New()); err != storage.ErrCIDMismatch {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestImportRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	_ = writeFile(tw, "../etc/passwd", []byte("x"))
	_ = tw.Close()
	if _, err := Import(context.Background(), &buf, memcas.New()); err == nil {
		t.Fatalf("expected traversal entry to be rejected")
	}
}

func TestImportRequiresIndex(t *testing.T) {
	ref := seed(t, memcas.New(), "blob")[0]
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	_ = writeFile(tw, "blocks/"+ref, []byte("blob"))
	_ = tw.Close()
	if _, err := Import(context.Background(), &buf, memcas.New()); err == nil {
		t.Fatalf("expected missing index to fail")
	}
}
