package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/evolearn/studyhub/internal/auth"
	"github.com/evolearn/studyhub/internal/jobs"
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// WorkerMode selects how serve runs the summary worker.
type WorkerMode string

const (
	// WorkerLoop runs the worker continuously, woken up by the job queue.
	WorkerLoop WorkerMode = "loop"
	// WorkerCron drains pending jobs on WORKER_SCHEDULE.
	WorkerCron WorkerMode = "cron"
	// WorkerOff leaves jobs to a separate worker process.
	WorkerOff WorkerMode = "off"
)

func (m WorkerMode) Valid() bool {
	return m == WorkerLoop || m == WorkerCron || m == WorkerOff
}

const shutdownTimeout = 10 * time.Second

// Server represents the server
type Server struct {
	app      *App
	grpcPort string
	httpPort string
	worker   WorkerMode
}

// NewServer creates a new server
func NewServer(app *App, worker WorkerMode) *Server {
	return &Server{
		app:      app,
		grpcPort: app.Config.Server.GRPCPort,
		httpPort: app.Config.Server.HTTPPort,
		worker:   worker,
	}
}

// NewGrpcServer returns a grpc server exposing the health service. Health
// checks need no credentials.
func NewGrpcServer(authn auth.Authenticator) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			auth.UnaryServerAuthInterceptor(authn, healthpb.Health_Check_FullMethodName),
			UnaryGrpcRequestTimeInterceptor(),
		)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	return grpcServer, hs
}

// Start runs the http api, the grpc health service and the scheduled tasks
// until the process is signaled.
func (s *Server) Start(ctx context.Context) error {
	if !s.worker.Valid() {
		return fmt.Errorf("unknown worker mode %q", s.worker)
	}

	grpcPort := ":" + s.grpcPort
	httpPort := ":" + s.httpPort

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		_ = gl.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grpcServer, hs := NewGrpcServer(s.app.Auth)

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           NewHandler(s.app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	executor := jobs.NewTaskExecutor(s.app.Tasks(s.worker == WorkerCron)...)
	if err = executor.Start(ctx); err != nil {
		_ = gl.Close()
		_ = rl.Close()
		return err
	}

	// make sure to wait for the servers to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting http api on: ", httpPort)
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting http api: %v", err)
			}
		}
		logrus.Infof("http api stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			logrus.Infof("grpc failed to start: %v", err)
		}
		logrus.Infof("grpc server stopped")
	}()

	if s.worker == WorkerLoop {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.app.Worker.Loop(ctx, s.app.Queue); err != nil {
				logrus.Errorf("[worker] %v", err)
			}
		}()
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	defer signal.Stop(sigs)
	select {
	case sig := <-sigs:
		logrus.Infof("received %v, shutting down", sig)
	case <-ctx.Done():
	}

	hs.Shutdown()
	cancel()
	executor.Stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err = restServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error stopping http api: %v", err)
	}
	grpcServer.GracefulStop()

	wg.Wait()

	return nil
}
