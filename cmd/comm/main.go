// Package main provides a command-line chat client and router for the comm
// overlay.
//
// In client mode the address is derived from -secret. Lines read from
// standard input have the form "ADDRESS text" and are sent as text
// messages; inbound messages are printed to standard output. In router
// mode (-router) the process only relays traffic.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/comm"
	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/messaging"
	"github.com/opd-ai/comm/network"
	"github.com/opd-ai/comm/routing"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// CLIConfig holds the parsed command line.
type CLIConfig struct {
	secret      string
	router      bool
	listen      string
	bootstrap   stringList
	stunServer  string
	pollTimeout time.Duration
	logLevel    string
}

// parseCLIFlags parses args into a configuration.
func parseCLIFlags(args []string, output io.Writer) (*CLIConfig, error) {
	config := &CLIConfig{}

	fs := flag.NewFlagSet("comm", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&config.secret, "secret", "", "Secret the own address is derived from")
	fs.BoolVar(&config.router, "router", false, "Run as a router with the null address")
	fs.StringVar(&config.listen, "listen", "0.0.0.0:0", "Local endpoint to bind (host:port)")
	fs.Var(&config.bootstrap, "bootstrap", "Router endpoint udp://host:port (repeatable)")
	fs.StringVar(&config.stunServer, "stun", "", "STUN server used to discover the public endpoint")
	fs.DurationVar(&config.pollTimeout, "poll-timeout", 100*time.Millisecond, "Receive timeout of the client loop")
	fs.StringVar(&config.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	if config.router && config.secret != "" {
		return fmt.Errorf("-router and -secret are mutually exclusive")
	}
	if !config.router && config.secret == "" {
		return fmt.Errorf("either -secret or -router is required")
	}
	if config.listen == "" {
		return fmt.Errorf("listen endpoint cannot be empty")
	}
	if config.pollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive")
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// setupLogging configures the global logger.
func setupLogging(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
}

// createOptions converts CLI configuration to client options.
func createOptions(config *CLIConfig) *comm.Options {
	opts := comm.NewOptions()
	opts.PollTimeout = config.pollTimeout
	opts.Network = network.DefaultConfig()
	opts.Network.STUNServer = config.stunServer
	return opts
}

// parseRouters resolves the -bootstrap endpoints.
func parseRouters(specs []string) ([]*routing.Node, error) {
	routers := make([]*routing.Node, 0, len(specs))
	for _, spec := range specs {
		node, err := routing.NewRouterNode(spec)
		if err != nil {
			return nil, err
		}
		routers = append(routers, node)
	}
	return routers, nil
}

// parseInputLine splits "ADDRESS text" into its parts.
func parseInputLine(line string) (address.Address, string, error) {
	target, text, found := strings.Cut(strings.TrimSpace(line), " ")
	if !found {
		return address.Address{}, "", errors.New("expected \"ADDRESS text\"")
	}
	recipient, err := address.FromString(target)
	if err != nil {
		return address.Address{}, "", err
	}
	return recipient, text, nil
}

// readCommands sends every input line until input ends or the client stops.
func readCommands(input io.Reader, sink *comm.CommandSink, errOut io.Writer) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		recipient, text, err := parseInputLine(line)
		if err != nil {
			fmt.Fprintf(errOut, "invalid input: %v\n", err)
			continue
		}
		if err := sink.SendTextMessage(recipient, text); err != nil {
			fmt.Fprintf(errOut, "send failed: %v\n", err)
			if errors.Is(err, comm.ErrClientStopped) {
				return
			}
		}
	}
}

func run(config *CLIConfig) error {
	routers, err := parseRouters(config.bootstrap)
	if err != nil {
		return err
	}

	self := address.Null()
	if !config.router {
		self = address.ForString(config.secret)
	}

	client := comm.New(self, createOptions(config))
	if !config.router {
		if err := client.OnTextMessage(func(msg *messaging.TextMessage) {
			fmt.Printf("%s: %s\n", msg.Sender, msg.Text)
		}); err != nil {
			return err
		}
	}

	sink, err := client.Listen(config.listen, routers...)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"address":  self.String(),
		"endpoint": client.LocalEndpoint().String(),
		"router":   config.router,
	}).Info("Listening")
	if public := client.PublicEndpoint(); public != nil {
		logrus.WithField("public", public.String()).Info("Public endpoint")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if !config.router {
		fmt.Printf("Your address: %s\n", self)
		go readCommands(os.Stdin, sink, os.Stderr)
	}

	sig := <-sigChan
	logrus.WithField("signal", sig.String()).Info("Shutting down")
	return client.Shutdown()
}

func main() {
	config, err := parseCLIFlags(os.Args[1:], os.Stderr)
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

	setupLogging(config.logLevel)

	if err := run(config); err != nil {
		logrus.WithError(err).Error("comm failed")
		os.Exit(1)
	}
}
