// Command rpc-bench drives the four RPC scenarios from §8 as a pair of
// OS processes talking over the UNIX-domain transport: one launched with
// --role=server, one with --role=client, sharing --endpoint.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/yail-go/pkg/yail/codec/jsoncodec"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/locator"
	"github.com/jabolina/yail-go/pkg/yail/rpc"
	"github.com/jabolina/yail-go/pkg/yail/transport/unixdomain"
)

var (
	app      = kingpin.New("rpc-bench", "multi-process RPC scenario driver (§8)")
	role     = app.Flag("role", "server or client").Required().Enum("server", "client")
	scenario = app.Flag("scenario", "ok, delayed, error, or unknown").Default("ok").Enum("ok", "delayed", "error", "unknown")
	service  = app.Flag("service", "rpc service name").Default("hello-service").String()
	endpoint = app.Flag("endpoint", "UNIX-domain socket path").Default("/tmp/rpc-bench.sock").String()
	timeout  = app.Flag("timeout", "client call timeout").Default("3s").Duration()
)

type helloReq struct{ Msg string }
type helloRes struct{ Msg string }

func descriptor() rpc.Descriptor[helloReq, helloRes] {
	return rpc.New[helloReq, helloRes]("hello",
		jsoncodec.New[helloReq]("hello.req"),
		jsoncodec.New[helloRes]("hello.res"))
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := definition.NewDefaultLogger()
	log.ToggleDebug(false)

	transport := unixdomain.New(log)

	switch *role {
	case "server":
		runServer(transport)
	case "client":
		runClient(transport)
	}
}

func runServer(transport *unixdomain.Transport) {
	server := rpc.NewServer(transport, definition.NewDefaultLogger())
	if err := server.AddProvider(*endpoint); err != nil {
		fail("AddProvider: %v", err)
	}
	defer server.RemoveProvider(*endpoint)

	d := descriptor()
	var provider *rpc.Provider[helloReq, helloRes]
	provider = rpc.RegisterProvider(server, *service, d, func(tx *rpc.Tx, req helloReq) {
		switch *scenario {
		case "ok":
			_ = provider.ReplyOK(tx, helloRes{Msg: "hey there"})
		case "delayed":
			_ = provider.ReplyDelayed(tx)
			go func() {
				time.Sleep(time.Second)
				_ = provider.ReplyOK(tx, helloRes{Msg: "hey there..sorry"})
			}()
		case "error":
			_ = provider.ReplyError(tx, "boom")
		}
	})

	// §8 scenario 7 needs no provider at all — "unknown" never reaches
	// here since the client dials an absent service directly.
	succeed(fmt.Sprintf("server: listening on %s for service %q", *endpoint, *service))
	select {} // the bench harness kills this process once the client exits
}

func runClient(transport *unixdomain.Transport) {
	loc := locator.New(transport)
	if *scenario != "unknown" {
		if err := loc.Insert(*service, *endpoint); err != nil {
			fail("locator.Insert: %v", err)
		}
	}

	client := rpc.NewClient(transport, loc, definition.NewDefaultLogger())
	d := descriptor()

	switch *scenario {
	case "ok":
		res, err := rpc.Call(client, *service, d, helloReq{Msg: "Hi"}, *timeout)
		if err != nil {
			fail("Call: %v", err)
		}
		if res.Msg != "hey there" {
			fail("res.Msg = %q, want %q", res.Msg, "hey there")
		}
		succeed("client: sync call OK")

	case "delayed":
		done := make(chan struct{})
		start := time.Now()
		rpc.AsyncCall(client, *service, d, helloReq{Msg: "Hi"}, *timeout, func(res helloRes, err error) {
			defer close(done)
			if err != nil {
				fail("AsyncCall: %v", err)
			}
			if res.Msg != "hey there..sorry" {
				fail("res.Msg = %q", res.Msg)
			}
		})
		<-done
		succeed(fmt.Sprintf("client: delayed async call completed after %s", time.Since(start)))

	case "error":
		_, err := rpc.Call(client, *service, d, helloReq{Msg: "Hi"}, *timeout)
		rerr, ok := err.(*rpcerr.RPCError)
		if !ok || rerr.Code != rpcerr.RPCFailureResponse {
			fail("err = %v, want FailureResponse", err)
		}
		succeed("client: FailureResponse observed as expected")

	case "unknown":
		_, err := rpc.Call(client, "absent", d, helloReq{Msg: "Hi"}, *timeout)
		rerr, ok := err.(*rpcerr.RPCError)
		if !ok || rerr.Code != rpcerr.RPCSystemError {
			fail("err = %v, want SystemError", err)
		}
		succeed("client: unknown service correctly propagated SystemError")
	}
}

func succeed(msg string) {
	color.Green(msg)
	if *role == "client" {
		os.Exit(0)
	}
}

func fail(format string, args ...interface{}) {
	color.Red("rpc-bench: "+format, args...)
	os.Exit(1)
}
