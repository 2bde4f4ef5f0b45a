package localfs

import (
	"flag"
	"fmt"

	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/casregistry"
)

var flagDir string

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "evidence archive in a local directory",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "archive directory (for --backend=localfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			if flagDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			cas, err := New(flagDir)
			return cas, nil, err
		},
	})
}
