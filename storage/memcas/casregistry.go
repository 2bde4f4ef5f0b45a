package memcas

import (
	"flag"

	"xdao.co/trustchain/storage"
	"xdao.co/trustchain/storage/casregistry"
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:          "memory",
		Description:   "in-process archive, lost on exit",
		Usage:         casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(*flag.FlagSet) {},
		Open: func() (storage.CAS, func() error, error) {
			return New(), nil, nil
		},
	})
}
