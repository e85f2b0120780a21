// Package main starts many comm clients on a range of ports, all using the
// same router. It is a load and soak tool for routers.
//
// Usage:
//
//	multi -host 0.0.0.0 -start 8000 -end 8100 -rampup 500ms -router udp://203.0.113.5:6667
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/comm"
	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/routing"
)

// CLIConfig holds the parsed command line.
type CLIConfig struct {
	host     string
	start    uint
	end      uint
	rampup   time.Duration
	router   string
	logLevel string
}

func parseCLIFlags(args []string) (*CLIConfig, error) {
	config := &CLIConfig{}

	fs := flag.NewFlagSet("multi", flag.ContinueOnError)
	fs.StringVar(&config.host, "host", "0.0.0.0", "Host to bind every node on")
	fs.UintVar(&config.start, "start", 8000, "First port (inclusive)")
	fs.UintVar(&config.end, "end", 8100, "Last port (exclusive)")
	fs.DurationVar(&config.rampup, "rampup", 500*time.Millisecond, "Delay between node starts")
	fs.StringVar(&config.router, "router", "", "Router endpoint udp://host:port")
	fs.StringVar(&config.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

func validateCLIConfig(config *CLIConfig) error {
	if config.start == 0 || config.end > 65536 {
		return fmt.Errorf("invalid port range: ports must be between 1 and 65535")
	}
	if config.start >= config.end {
		return fmt.Errorf("invalid port range: start %d must be below end %d", config.start, config.end)
	}
	if config.rampup < 0 {
		return fmt.Errorf("rampup cannot be negative")
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// endpoints lists host:port for every port in [start, end).
func endpoints(host string, start, end uint) []string {
	result := make([]string, 0, end-start)
	for port := start; port < end; port++ {
		result = append(result, net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)))
	}
	return result
}

// startNodes launches one client with a random address per endpoint,
// waiting rampup between launches. If any node fails to start, the ones
// already running are shut down and the first error is returned.
func startNodes(ctx context.Context, hosts []string, routers []*routing.Node, rampup time.Duration) ([]*comm.Client, error) {
	clients := make([]*comm.Client, len(hosts))
	g, gctx := errgroup.WithContext(ctx)

launch:
	for i, host := range hosts {
		if i > 0 && rampup > 0 {
			select {
			case <-gctx.Done():
				break launch
			case <-time.After(rampup):
			}
		}

		i, host := i, host
		g.Go(func() error {
			self, err := address.Random()
			if err != nil {
				return err
			}
			client := comm.New(self, nil)
			if _, err := client.Listen(host, routers...); err != nil {
				return err
			}
			clients[i] = client

			logrus.WithFields(logrus.Fields{
				"function": "startNodes",
				"address":  self.String(),
				"endpoint": client.LocalEndpoint().String(),
			}).Debug("Node started")
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, multierr.Append(err, shutdownAll(clients))
	}
	return clients, nil
}

// shutdownAll stops every client concurrently and aggregates failures.
func shutdownAll(clients []*comm.Client) error {
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, client := range clients {
		if client == nil {
			continue
		}
		wg.Add(1)
		go func(c *comm.Client) {
			defer wg.Done()
			if err := c.Shutdown(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("shutdown %s: %w", c.Self(), err))
				mu.Unlock()
			}
		}(client)
	}
	wg.Wait()
	return errs
}

func main() {
	config, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := validateCLIConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	level, _ := logrus.ParseLevel(config.logLevel)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var routers []*routing.Node
	if config.router != "" {
		router, err := routing.NewRouterNode(config.router)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(2)
		}
		routers = append(routers, router)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"host":  config.host,
		"start": config.start,
		"end":   config.end,
	}).Info("Starting nodes")

	clients, err := startNodes(ctx, endpoints(config.host, config.start, config.end), routers, config.rampup)
	if err != nil {
		logrus.WithError(err).Error("Failed to start nodes")
		os.Exit(1)
	}
	logrus.WithField("nodes", len(clients)).Info("All nodes running")

	<-ctx.Done()
	if err := shutdownAll(clients); err != nil {
		logrus.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
