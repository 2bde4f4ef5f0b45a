package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/trustchain/cidutil"
	"xdao.co/trustchain/storage"
)

// Client is a storage.CAS backed by a remote archive service. Every reply
// is checked against the CID it claims.
type Client struct {
	cc     *grpc.ClientConn
	client ArchiveClient

	// Timeout bounds each RPC when non-zero.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	// MaxMsgBytes sets both send and receive limits when non-zero.
	MaxMsgBytes int
	// Timeout bounds each RPC when non-zero.
	Timeout time.Duration
}

// Dial connects lazily to target over plaintext. The evidence daemon is
// expected to sit behind a private network or a TLS-terminating proxy.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc, opts.Timeout), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn, timeout time.Duration) *Client {
	return &Client{cc: cc, client: NewArchiveClient(cc), Timeout: timeout}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	want, err := cidutil.Of(data)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	reply, err := c.client.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, fromStatus(err)
	}
	got, err := storage.ParseCID(reply.GetValue())
	if err != nil {
		return cid.Undef, err
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return got, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	reply, err := c.client.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, fromStatus(err)
	}
	b := reply.GetValue()
	if !cidutil.Matches(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *Client) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	reply, err := c.client.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}
