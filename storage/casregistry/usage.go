package casregistry

// Usage says which binaries accept a backend. Backends are linked at build
// time: a package registers itself in init() and a binary enables it with a
// blank import.
type Usage uint8

const (
	// UsageCLI backends are offered by the trustchain CLI.
	UsageCLI Usage = 1 << iota
	// UsageDaemon backends are offered by trustchaind and trustchain-casd.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
