package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gokv/internal/aof"
	"gokv/internal/command"
	"gokv/internal/config"
	"gokv/internal/conn"
	"gokv/internal/housekeeping"
	"gokv/internal/persistence"
	"gokv/internal/rdb"
	"gokv/internal/resp"
	"gokv/internal/srvstate"
	"gokv/internal/store"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "gokv-server [config file]",
		Short: "an in-memory, RESP-compatible key-value server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				configPath = args[0]
			}
			return run(configPath, cmd)
		},
	}
	for key := range config.Known {
		root.Flags().String(key, "", "override the configured "+key)
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, cmd *cobra.Command) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath, log)
	if err != nil {
		log.WithError(err).Error("startup: config load failed")
		os.Exit(1)
	}

	for key := range config.Known {
		if val, _ := cmd.Flags().GetString(key); val != "" {
			if serr := cfg.Set(key, val); serr != nil {
				log.WithError(serr).Errorf("startup: invalid --%s override", key)
				os.Exit(1)
			}
		}
	}

	applyLogLevel(log, cfg)

	dbfilename, _ := cfg.Get("dbfilename")
	rdbPath := filepath.Join(".", dbfilename)
	aofPath := filepath.Join(".", aof.DefaultPath)

	st := store.New(nil)

	loaded, err := rdb.Load(rdbPath)
	if err != nil {
		log.WithError(err).Error("startup: rdb load failed")
		os.Exit(1)
	}
	if len(loaded) > 0 {
		st.Load(loaded)
		log.WithField("keys", len(loaded)).Info("startup: loaded rdb snapshot")
	}

	appendOnlyVal, _ := cfg.Get("appendonly")
	var aofWriter *aof.Writer
	if appendOnlyVal == "yes" {
		policyName, _ := cfg.Get("appendfsync")
		policy, perr := aof.ParsePolicy(policyName)
		if perr != nil {
			log.WithError(perr).Error("startup: invalid appendfsync policy")
			os.Exit(1)
		}

		bootstrapState := srvstate.New(cfg, st, log, nil)
		replayed := 0
		replayErr := aof.Load(aofPath, func(args []string) error {
			byteArgs := make([][]byte, len(args))
			for i, a := range args {
				byteArgs[i] = []byte(a)
			}
			res := command.Dispatch(bootstrapState, byteArgs)
			if res.Reply.Kind == resp.Error {
				log.WithField("cmd", args[0]).Warn("startup: aof replay command failed")
			}
			replayed++
			return nil
		})
		if replayErr != nil {
			log.WithError(replayErr).Error("startup: aof replay failed")
			os.Exit(1)
		}
		if replayed > 0 {
			log.WithField("commands", replayed).Info("startup: replayed aof")
		}

		aofWriter, err = aof.Open(aofPath, policy, log)
		if err != nil {
			log.WithError(err).Error("startup: aof open failed")
			os.Exit(1)
		}
	}

	state := srvstate.New(cfg, st, log, aofWriter)

	bind, _ := cfg.Get("bind")
	portStr, _ := cfg.Get("port")
	addr := fmt.Sprintf("%s:%s", bind, portStr)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Error("startup: listen failed")
		os.Exit(1)
	}
	log.WithField("addr", addr).Info("gokv-server listening")

	go housekeeping.Run(state, rdbPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown: signal received")
		state.Shutdown()
	}()

	go func() {
		<-state.Done()
		listener.Close()
	}()

	for {
		c, aerr := listener.Accept()
		if aerr != nil {
			select {
			case <-state.Done():
				goto shutdown
			default:
				log.WithError(aerr).Warn("accept failed")
				continue
			}
		}
		go conn.Handle(c, state)
	}

shutdown:
	log.Info("shutdown: saving final snapshot")
	if err := persistence.SaveSync(state, rdbPath); err != nil {
		log.WithError(err).Error("shutdown: final save failed")
		os.Exit(2)
	}
	if aofWriter != nil {
		if err := aofWriter.Close(); err != nil {
			log.WithError(err).Error("shutdown: aof close failed")
			os.Exit(2)
		}
	}
	log.Info("shutdown: clean exit")
	return nil
}

func applyLogLevel(log *logrus.Logger, cfg *config.Config) {
	level, _ := cfg.Get("loglevel")
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "verbose":
		log.SetLevel(logrus.InfoLevel)
	case "warning":
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}
