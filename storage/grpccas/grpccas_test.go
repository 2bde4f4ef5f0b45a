package grpccas

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/localfs"
	"xdao.co/trustchain/storage/memcas"
	"xdao.co/trustchain/storage/testkit"
)

func serve(t *testing.T, backend storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterArchiveServer(srv, &Server{CAS: backend})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return NewClient(cc, 2*time.Second)
}

func TestGRPCArchiveConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return serve(t, memcas.New())
	})
}

func TestGRPCArchiveOverLocalFS(t *testing.T) {
	ctx := context.Background()
	backend, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, backend)

	evidence := []byte("bill of lading, photos, lab report")
	id, err := client.Put(ctx, evidence)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, err := backend.Has(ctx, id); err != nil || !ok {
		t.Fatalf("blob not stored on backend: ok=%v err=%v", ok, err)
	}
	got, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(evidence) {
		t.Fatalf("payload mismatch")
	}
	if _, err := client.Put(ctx, nil); err != storage.ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
