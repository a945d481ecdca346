package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"namiokai/config"
	"namiokai/mq/mq"
	"namiokai/web"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `This command starts the web server for the application.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// flags win over the environment when given
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetString("port")
			}
			if cmd.Flags().Changed("db") {
				cfg.DBMode, _ = cmd.Flags().GetString("db")
			}
			if cmd.Flags().Changed("mq") {
				cfg.MQMode, _ = cmd.Flags().GetString("mq")
			}
			if cmd.Flags().Changed("dev") {
				cfg.IsDev, _ = cmd.Flags().GetBool("dev")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return web.Serve(ctx, web.ServiceConfig{
				IsDev:  cfg.IsDev,
				Port:   cfg.Port,
				DBMode: cfg.DBMode,
				MqMode: mq.Mode(cfg.MQMode),
				Config: cfg,
			})
		},
	}

	cmd.Flags().Bool("dev", false, "Run in development mode")
	cmd.Flags().String("port", "8080", "Port to run the web server on")
	cmd.Flags().String("db", config.DBModeMem, "Storage backend (mem, pg)")
	cmd.Flags().String("mq", string(mq.ModeGoChan), "Message queue mode (go_chan, rabbitmq, gcp_pub_sub)")

	return cmd
}
