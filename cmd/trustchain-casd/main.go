// Command trustchain-casd serves an evidence archive over gRPC so several
// trustchaind instances can share one store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"xdao.co/trustchain/storage/casregistry"
	"xdao.co/trustchain/storage/grpccas"

	_ "xdao.co/trustchain/storage/localfs"
	_ "xdao.co/trustchain/storage/memcas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("trustchain-casd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	backend := casregistry.RegisterFlags(fs, casregistry.UsageDaemon, "localfs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := log.New(errOut, "trustchain-casd: ", log.LstdFlags)

	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintln(out, b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}
	if *backend == "grpc" {
		logger.Print("refusing to proxy to another archive daemon")
		return 2
	}

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageDaemon)
	if err != nil {
		logger.Print(err)
		return 2
	}
	defer closeFn()

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Print(err)
		return 1
	}

	s := grpc.NewServer()
	grpccas.RegisterArchiveServer(s, &grpccas.Server{CAS: cas})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.Printf("listening on %s (backend=%s)", lis.Addr(), *backend)
	if err := s.Serve(lis); err != nil {
		logger.Print(err)
		return 1
	}
	return 0
}
