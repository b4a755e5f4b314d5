package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/repe-org/repe-go/codec"
	"github.com/repe-org/repe-go/loadbalance"
	"github.com/repe-org/repe-go/protocol"
	"github.com/repe-org/repe-go/registry"
	"github.com/repe-org/repe-go/server"
	"github.com/repe-org/repe-go/service"
)

func startServer(t *testing.T, addr string) {
	t.Helper()
	svr := server.NewServer(server.Options{})
	methods, err := server.NewRegistry(service.Methods(svr)...)
	if err != nil {
		t.Fatal(err)
	}
	go svr.Serve(methods, "tcp", addr)
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	time.Sleep(100 * time.Millisecond)
}

func newClient(t *testing.T, addr string, format protocol.Format) *Client {
	t.Helper()
	reg := registry.NewStaticRegistry("math", addr)
	cli, err := New(reg, &loadbalance.RoundRobinBalancer{}, "math", format, 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cli.Close() })
	return cli
}

func TestCallJSON(t *testing.T) {
	startServer(t, "127.0.0.1:9631")
	cli := newClient(t, "127.0.0.1:9631", protocol.FormatJSON)

	var reply map[string]float64
	if err := cli.Call("add", map[string]float64{"a": 2, "b": 3}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply["result"] != 5 {
		t.Errorf("result: got %g, want 5", reply["result"])
	}
}

func TestCallBinary(t *testing.T) {
	startServer(t, "127.0.0.1:9632")
	cli := newClient(t, "127.0.0.1:9632", protocol.FormatBinary)

	var reply map[string]float64
	if err := cli.Call("multiply", map[string]float64{"x": 4, "y": 2.5}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply["result"] != 10 {
		t.Errorf("result: got %g, want 10", reply["result"])
	}
}

func TestCallDomainError(t *testing.T) {
	startServer(t, "127.0.0.1:9633")
	cli := newClient(t, "127.0.0.1:9633", protocol.FormatJSON)

	var reply map[string]float64
	err := cli.Call("divide", map[string]float64{"numerator": 1, "denominator": 0}, &reply)

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.Code != protocol.CodeInvalidBody {
		t.Errorf("code: got %v", rpcErr.Code)
	}
	if rpcErr.Text != "Division by zero" {
		t.Errorf("text: %q", rpcErr.Text)
	}
	if len(reply) != 0 {
		t.Errorf("reply should be untouched on error, got %v", reply)
	}
}

func TestCallMethodNotFound(t *testing.T) {
	startServer(t, "127.0.0.1:9634")
	cli := newClient(t, "127.0.0.1:9634", protocol.FormatJSON)

	var reply map[string]float64
	err := cli.Call("subtract", map[string]float64{"a": 1, "b": 1}, &reply)

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.Code != protocol.CodeMethodNotFound {
		t.Errorf("code: got %v", rpcErr.Code)
	}
}

func TestNotify(t *testing.T) {
	startServer(t, "127.0.0.1:9635")
	cli := newClient(t, "127.0.0.1:9635", protocol.FormatJSON)

	if err := cli.Notify("add", map[string]float64{"a": 1, "b": 1}); err != nil {
		t.Fatal(err)
	}

	// The pooled connection is still aligned for the next call.
	var reply map[string]string
	if err := cli.Call("echo", map[string]string{"message": "after notify"}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply["result"] != "Echo: after notify" {
		t.Errorf("result: %q", reply["result"])
	}
}

func TestCallStatus(t *testing.T) {
	startServer(t, "127.0.0.1:9636")
	cli := newClient(t, "127.0.0.1:9636", protocol.FormatJSON)

	var reply map[string]codec.Value
	if err := cli.Call("status", struct{}{}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply["status"].Str != "online" {
		t.Errorf("status: %q", reply["status"].Str)
	}
	if reply["version"].Str != "1.0.0" {
		t.Errorf("version: %q", reply["version"].Str)
	}
	if reply["uptime"].Kind != codec.KindFloat {
		t.Errorf("uptime kind: %v", reply["uptime"].Kind)
	}
	if reply["connections"].Kind != codec.KindInt || reply["connections"].Int < 1 {
		t.Errorf("connections: %+v", reply["connections"])
	}
}

func TestConcurrentCalls(t *testing.T) {
	startServer(t, "127.0.0.1:9637")
	cli := newClient(t, "127.0.0.1:9637", protocol.FormatJSON)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				a, b := float64(i), float64(j)
				var reply map[string]float64
				if err := cli.Call("add", map[string]float64{"a": a, "b": b}, &reply); err != nil {
					t.Error(err)
					return
				}
				if reply["result"] != a+b {
					t.Errorf("got %g, want %g", reply["result"], a+b)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestNewRejectsUndecodableFormat(t *testing.T) {
	reg := registry.NewStaticRegistry("math")
	if _, err := New(reg, &loadbalance.RoundRobinBalancer{}, "math", protocol.FormatRaw, 1); err == nil {
		t.Error("raw format should be rejected")
	}
	if _, err := New(reg, &loadbalance.RoundRobinBalancer{}, "math", protocol.FormatUTF8, 1); err == nil {
		t.Error("utf-8 format should be rejected")
	}
}
