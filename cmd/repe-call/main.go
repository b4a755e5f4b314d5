// Command repe-call invokes one method on a REPE server and prints the
// result.
//
// Usage:
//
//	repe-call --addr 127.0.0.1:8081 add a=2 b=3
//	repe-call --format binary echo message=hi
//	repe-call --notify add a=1 b=1
//	repe-call status
//
// key=value arguments become parameters; values that parse as numbers are
// sent as doubles, everything else as strings.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/repe-org/repe-go/client"
	"github.com/repe-org/repe-go/codec"
	"github.com/repe-org/repe-go/loadbalance"
	"github.com/repe-org/repe-go/protocol"
	"github.com/repe-org/repe-go/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "repe-call: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("repe-call", pflag.ContinueOnError)
	addr := flags.String("addr", "127.0.0.1:8081", "server address")
	format := flags.String("format", "json", "wire format: json|binary")
	notify := flags.Bool("notify", false, "fire-and-forget, expect no response")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	args := flags.Args()
	if len(args) < 1 {
		return fmt.Errorf("usage: repe-call [flags] <method> [key=value ...]")
	}
	method := args[0]

	var wire protocol.Format
	switch *format {
	case "json":
		wire = protocol.FormatJSON
	case "binary":
		wire = protocol.FormatBinary
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}

	reg := registry.NewStaticRegistry("repe", *addr)
	cli, err := client.New(reg, &loadbalance.RoundRobinBalancer{}, "repe", wire, 1)
	if err != nil {
		return err
	}
	defer cli.Close()

	if *notify {
		return cli.Notify(method, params)
	}

	var reply map[string]codec.Value
	if err := cli.Call(method, params, &reply); err != nil {
		return err
	}
	for k, v := range reply {
		switch v.Kind {
		case codec.KindString:
			fmt.Printf("%s: %s\n", k, v.Str)
		case codec.KindFloat:
			fmt.Printf("%s: %g\n", k, v.Float)
		case codec.KindInt:
			fmt.Printf("%s: %d\n", k, v.Int)
		}
	}
	return nil
}

// parseParams turns key=value arguments into a parameter map. All-numeric
// values become a float map (the arithmetic methods), otherwise strings.
func parseParams(args []string) (any, error) {
	if len(args) == 0 {
		return map[string]float64{}, nil
	}
	floats := make(map[string]float64, len(args))
	strs := make(map[string]string, len(args))
	numeric := true
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("bad parameter %q, want key=value", arg)
		}
		strs[key] = val
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			floats[key] = f
		} else {
			numeric = false
		}
	}
	if numeric {
		return floats, nil
	}
	return strs, nil
}
