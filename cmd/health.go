package cmd

import (
	"context"
	"time"

	"github.com/evolearn/studyhub/internal/server"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func healthCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "health",
		Short: "check the grpc health service of a running server",
		Run: func(cmd *cobra.Command, args []string) {
			c := readContext()

			conn, err := grpc.NewClient(c.GrpcServer,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithUnaryInterceptor(server.UnaryRequestTimeInterceptor()),
			)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(tokenContext(), 5*time.Second)
			defer cancel()

			res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
			if err != nil {
				color.Red("unreachable: %v", err)
				return
			}
			if res.Status != healthpb.HealthCheckResponse_SERVING {
				color.Yellow("%s", res.Status)
				return
			}
			color.Green("%s", res.Status)
		},
	}

	command.Flags().StringVarP(&GrpcServer, "grpc-server", "g", "", "grpc address, overrides the saved context")

	return command
}
