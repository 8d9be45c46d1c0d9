// Program netrun is a command-line utility for running and talking to netrun
// servers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/netrun"
	"github.com/creachadair/netrun/handler"
	"github.com/creachadair/netrun/internal/logging"
	"github.com/creachadair/netrun/retry"
	"github.com/creachadair/netrun/scan"
	"github.com/creachadair/netrun/sysinfo"
	"github.com/creachadair/netrun/wire"
	"github.com/sirupsen/logrus"
)

type globalFlags struct {
	Config         string        `flag:"config,Path of a TOML configuration file"`
	Address        string        `flag:"address,Server address to dial (host:port)"`
	Port           string        `flag:"port,Port to serve or scan (default 55400; 0 picks a free port)"`
	Format         string        `flag:"format,Message format (json or cbor)"`
	MaxMessageSize int           `flag:"max-message-size,Limit on the decoded size of a message in bytes"`
	RetryTimes     int           `flag:"retry-times,Number of connection attempts"`
	RetryTimeout   time.Duration `flag:"retry-timeout,Time limit for each connection attempt"`
	LogLevel       string        `flag:"log-level,Log level (trace, debug, info, warn, error)"`
}

var (
	flags globalFlags
	cfg   config

	serveFlags struct {
		Even bool `flag:"even,Reply whether each integer received is even"`
	}
	sendFlags struct {
		Wait    time.Duration `flag:"wait,default=5s,How long to wait for each reply"`
		NoReply bool          `flag:"no-reply,Do not wait for replies"`
	}
	scanFlags struct {
		Timeout     time.Duration `flag:"timeout,default=200ms,Time limit for each port check"`
		Concurrency int           `flag:"concurrency,default=64,Maximum number of port checks in flight"`
	}
	sysinfoFlags struct {
		JSON bool `flag:"json,Print the summary as JSON"`
	}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Help: `Utilities for running and talking to netrun servers.

Settings are read from the TOML file given by --config, if any, and then
from the command-line flags. Keys in the file are address, port, format,
max_message_size, retry_times, retry_timeout, and log_level.`,

		SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &flags) },
		Init: func(env *command.Env) error {
			logging.ConfigureRuntime()
			c, err := loadConfig(flags.Config)
			if err != nil {
				return err
			}
			if err := c.overlay(&flags); err != nil {
				return err
			}
			if c.LogLevel != "" {
				logging.SetLevel(c.LogLevel)
			}
			cfg = c
			return nil
		},

		Commands: []*command.C{
			{
				Name:  "serve",
				Usage: "[--even]",
				Help: `Run a server on the configured port until interrupted.

By default, the server replies to each message with a copy of the message.
With --even, the server expects integers and replies whether each is even.`,
				SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &serveFlags) },
				Run: func(env *command.Env) error {
					if len(env.Args) != 0 {
						return env.Usagef("extra arguments: %q", env.Args)
					}
					log := logrus.StandardLogger()
					if serveFlags.Even {
						return runServe(ctx, handler.Logged(handler.Pure(isEven), log))
					}
					return runServe(ctx, handler.Logged(handler.Pure(echo), log))
				},
			},
			{
				Name:  "send",
				Usage: "<json-value>...",
				Help: `Connect to a server and send each value, printing the replies.

Each argument is parsed as a JSON value. Connecting is retried according to
the retry settings. Each reply is printed as JSON on its own line.`,
				SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &sendFlags) },
				Run:      func(env *command.Env) error { return runSend(ctx, env) },
			},
			{
				Name:  "scan",
				Usage: "[host...]",
				Help: `Scan hosts for a listener on the configured port.

If no hosts are given, scan the loopback address and 192.168.0.1-254.
The hosts with the port open are printed, one per line.`,
				SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &scanFlags) },
				Run:      func(env *command.Env) error { return runScan(ctx, env) },
			},
			{
				Name:     "sysinfo",
				Help:     "Print a summary of the local host.",
				SetFlags: func(_ *command.Env, fs *flag.FlagSet) { flax.MustBind(fs, &sysinfoFlags) },
				Run: func(env *command.Env) error {
					info, err := sysinfo.Get(ctx)
					if err != nil {
						return err
					}
					if sysinfoFlags.JSON {
						return printJSON(info)
					}
					fmt.Print(info)
					return nil
				},
			},
			{
				Name:  "frame",
				Usage: "<json-value>...",
				Help: `Encode values as framed messages and write them to stdout.

Each argument is parsed as a JSON value, encoded with the configured format,
compressed, and written as a single length-prefixed frame.`,
				Run: func(env *command.Env) error {
					vs, err := parseValues(env)
					if err != nil {
						return err
					}
					codec := cfg.codec()
					var out []byte
					for _, v := range vs {
						enc, err := codec.Encode(v)
						if err != nil {
							return err
						}
						out = wire.AppendFrame(out, enc)
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name: "unframe",
				Help: `Read framed messages from stdin and print them as JSON.

This is the inverse of the frame command.`,
				Run: func(env *command.Env) error { return runUnframe(os.Stdin, os.Stdout) },
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func runServe[In, Out any](ctx context.Context, svc netrun.Service[In, Out]) error {
	srv, err := netrun.Listen[In, Out](cfg.Port, cfg.options())
	if err != nil {
		return err
	}
	defer srv.Close()
	logrus.WithField("server", srv.ID()).Infof("Serving %v", srv)

	err = srv.Serve(ctx, svc)
	logrus.WithField("metrics", netrun.Metrics().String()).Info("Server exiting")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runSend(ctx context.Context, env *command.Env) error {
	vs, err := parseValues(env)
	if err != nil {
		return err
	}
	addr := cfg.dialAddr()
	cli, err := retry.Run(ctx, cfg.retryPolicy(), func(ctx context.Context) (*netrun.Client[any, any], error) {
		return netrun.Dial[any, any](ctx, addr, cfg.options())
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer cli.Close()
	logrus.Debugf("Connected %v", cli)

	for _, v := range vs {
		if sendFlags.NoReply {
			if err := cli.Send(v); err != nil {
				return err
			}
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, sendFlags.Wait)
		rsp, err := cli.Call(rctx, v)
		cancel()
		if err != nil {
			return fmt.Errorf("send %v: %w", v, err)
		}
		if err := printJSON(rsp); err != nil {
			return err
		}
	}
	return nil
}

func runScan(ctx context.Context, env *command.Env) error {
	hosts := scan.LocalNetwork()
	if len(env.Args) != 0 {
		hosts = hosts[:0]
		for _, arg := range env.Args {
			addr, err := netip.ParseAddr(arg)
			if err != nil {
				return env.Usagef("invalid host address: %v", err)
			}
			hosts = append(hosts, addr)
		}
	}
	open, err := scan.Port(ctx, cfg.Port, hosts, &scan.Options{
		Timeout:     scanFlags.Timeout,
		Concurrency: scanFlags.Concurrency,
		Logger:      logrus.StandardLogger(),
	})
	if err != nil {
		return err
	}
	for _, addr := range open {
		fmt.Println(addr)
	}
	return nil
}

func runUnframe(r io.Reader, w io.Writer) error {
	codec := cfg.codec()
	br := bufio.NewReader(r)
	for {
		data, err := wire.ReadFrame(br, codec.MaxFrameSize())
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		} else if len(data) == 0 {
			continue
		}
		var v any
		if err := codec.Decode(data, &v); err != nil {
			return err
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
	}
}

func parseValues(env *command.Env) ([]any, error) {
	if len(env.Args) == 0 {
		return nil, env.Usagef("missing values")
	}
	vs := make([]any, len(env.Args))
	for i, arg := range env.Args {
		if err := json.Unmarshal([]byte(arg), &vs[i]); err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", arg, err)
		}
	}
	return vs, nil
}

func printJSON(v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func echo(v any) any { return v }

func isEven(n int) bool { return n%2 == 0 }
