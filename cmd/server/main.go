package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"rcucell/api/grpcserver"
	"rcucell/config"
	"rcucell/infra/codec"
	"rcucell/infra/kafka"
	"rcucell/infra/sequence"
	"rcucell/infra/store"
	"rcucell/jobs/broadcaster"
	"rcucell/service"
)

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Store ----------------

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	ser, err := codec.ByName(cfg.PayloadFormat)
	if err != nil {
		return err
	}

	// ---------------- Service ----------------

	svc := service.NewDocumentService(
		st,
		sequence.New(0),
		ser,
		int(cfg.MaxDocumentSize),
	)
	defer svc.Close()

	if err := svc.Restore(); err != nil {
		return err
	}

	// ---------------- Broadcaster ----------------

	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	bc := broadcaster.New(st, pub, cfg.BroadcastInterval)
	defer bc.Close()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger))
	grpcserver.RegisterCellServiceServer(grpcSrv, grpcserver.NewServer(svc))

	// ---------------- Run ----------------

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bc.Run(ctx) })
	g.Go(func() error { return svc.RunPruneJob(ctx, cfg.PruneInterval) })
	if cfg.WatchFile != "" {
		w := service.NewWatcher(svc, cfg.WatchFile, 0)
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		log.Printf("cell server running on %s (format=%s, kafka=%s)", cfg.ListenAddr, ser.Name(), cfg.KafkaDriver)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down")
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}

func newPublisher(cfg config.Config) (broadcaster.Publisher, error) {
	switch cfg.KafkaDriver {
	case config.DriverSarama:
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case config.DriverKafkaGo:
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	default:
		return broadcaster.Discard{}, nil
	}
}
