package grpccas

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/casregistry"
)

var (
	flagTarget      string
	flagTimeout     time.Duration
	flagMaxMsgBytes int
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "remote archive served by trustchain-casd",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "archive daemon host:port (for --backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 10*time.Second, "per-RPC timeout (for --backend=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-max-msg-bytes", 0, "max message size in bytes; 0 keeps grpc defaults")
		},
		Open: func() (storage.CAS, func() error, error) {
			target := strings.TrimSpace(flagTarget)
			if target == "" {
				return nil, nil, fmt.Errorf("missing --grpc-target")
			}
			c, err := Dial(target, DialOptions{Timeout: flagTimeout, MaxMsgBytes: flagMaxMsgBytes})
			if err != nil {
				return nil, nil, err
			}
			return c, c.Close, nil
		},
	})
}
