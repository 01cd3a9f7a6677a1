// fence-archived serves the prompt archive gRPC service over a selected
// backend.
package main

import (
	"flag"
	"net"
	"os"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/anuraag-khare/prompt-fence/storage"
	"github.com/anuraag-khare/prompt-fence/storage/grpccas"
	"github.com/anuraag-khare/prompt-fence/storage/localfs"
	"github.com/anuraag-khare/prompt-fence/storage/memory"
)

func main() {
	fs := flag.NewFlagSet("fence-archived", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "memory", "archive backend: memory | localfs")
	dir := fs.String("dir", "", "archive directory (localfs backend)")
	_ = fs.Parse(os.Args[1:])

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "fence-archived").Logger()

	var cas storage.CAS
	switch *backend {
	case "memory":
		cas = memory.New()
	case "localfs":
		fsCAS, err := localfs.New(*dir)
		if err != nil {
			log.Fatal().Err(err).Msg("open localfs backend")
		}
		cas = fsCAS
	default:
		log.Fatal().Str("backend", *backend).Msg("unknown backend")
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatal().Err(err).Str("listen", *listen).Msg("listen")
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	log.Info().Str("addr", lis.Addr().String()).Str("backend", *backend).Msg("listening")
	if err := s.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
