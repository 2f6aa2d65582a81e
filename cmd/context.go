package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/metadata"
)

const (
	configFileName = "studyhub"
	configFileType = "yml"

	defaultServer     = "http://localhost:8080"
	defaultGrpcServer = "localhost:8081"
)

// flag overrides of the saved context
var (
	Token      string
	Server     string
	GrpcServer string
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

type Context struct {
	Token      string `mapstructure:"token"`
	Server     string `mapstructure:"server"`
	GrpcServer string `mapstructure:"grpc_server"`
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tmp"
	}
	return filepath.Join(dir, "studyhub")
}

// saves the context info to the config file in ~/.config/studyhub
func setContextCommand() *cobra.Command {
	var c Context
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if c.Token == "" {
				color.Red(`missing: --token`)
				return
			}
			if c.Server == "" {
				c.Server = defaultServer
			}
			if c.GrpcServer == "" {
				c.GrpcServer = defaultGrpcServer
			}

			if err := writeContext(c); err != nil {
				color.Red("error writing config file: %v", err)
				return
			}
			color.Green("context saved")
		},
	}

	command.Flags().StringVarP(&c.Token, "token", "t", "", "api token")
	command.Flags().StringVarP(&c.Server, "server", "s", "", "http api address")
	command.Flags().StringVarP(&c.GrpcServer, "grpc-server", "g", "", "grpc address")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			c := readContext()
			printField("Server", c.Server)
			printField("Grpc server", c.GrpcServer)
			if c.Token == "" {
				printField("Token", color.YellowString("not set"))
			} else {
				printField("Token", "set")
			}
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			err := os.Remove(filepath.Join(configDir(), configFileName+"."+configFileType))
			if err != nil && !os.IsNotExist(err) {
				color.Red("error removing config file: %v", err)
				return
			}
			color.Green("context reset")
		},
	}

	return command
}

func writeContext(c Context) error {
	dir := configDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType(configFileType)
	v.Set("context.token", c.Token)
	v.Set("context.server", c.Server)
	v.Set("context.grpc_server", c.GrpcServer)

	return v.WriteConfigAs(filepath.Join(dir, configFileName+"."+configFileType))
}

func readContext() Context {
	c := Context{Server: defaultServer, GrpcServer: defaultGrpcServer}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir())
	_ = v.BindEnv("context.token", "STUDYHUB_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("error reading config file: ", err)
		}
	}
	if err := v.UnmarshalKey("context", &c); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}

	if Token != "" {
		c.Token = Token
	}
	if Server != "" {
		c.Server = Server
	}
	if GrpcServer != "" {
		c.GrpcServer = GrpcServer
	}
	return c
}

func bindContextFlags(command *cobra.Command) {
	command.Flags().StringVarP(&Token, "token", "t", "", "token, overrides the saved context")
	command.Flags().StringVar(&Server, "server", "", "http api address, overrides the saved context")
}

func tokenContext() context.Context {
	c := readContext()
	if c.Token == "" {
		return context.Background()
	}

	md := metadata.New(map[string]string{"authorization": "Bearer " + c.Token})
	return metadata.NewOutgoingContext(context.Background(), md)
}
