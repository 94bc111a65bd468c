package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"litterbox-service/internal/logger"
	"litterbox-service/internal/messaging"
)

var (
	redisHost string
	redisPort int
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "litterctl",
	Short: "Operate a litterbox-service over Redis",
	Long: `litterctl sends commands to a running litterbox-service and reads back
its published motor and weight state.

Commands are pushed onto the service's Redis command lists, so they are
processed in order even while the service is busy.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&redisHost, "host", "localhost", "Redis host")
	rootCmd.PersistentFlags().IntVar(&redisPort, "port", 6379, "Redis port")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log Redis traffic")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func connect() (*messaging.RedisClient, error) {
	level := logger.LogLevelWarning
	if verbose {
		level = logger.LogLevelDebug
	}
	l := logger.NewLogger(log.New(os.Stderr, "", 0), level)

	client := messaging.NewRedisClient(redisHost, redisPort, l, messaging.Callbacks{})
	if err := client.Connect(); err != nil {
		return nil, err
	}
	return client, nil
}
