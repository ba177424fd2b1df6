// Command pubsub-bench drives the three PubSub scenarios from §8 as a
// pair of OS processes talking over the shared-memory transport: one
// launched with --role=writer, one with --role=reader, sharing --dir and
// --domain. Grounded on the teacher repo's own bench-style CLI
// conventions (flag-driven role selection, colored pass/fail summary).
package main

import (
	"fmt"
	"hash/crc32"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/yail-go/pkg/yail/codec/jsoncodec"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/pubsub"
	"github.com/jabolina/yail-go/pkg/yail/transport/shmem"
)

var (
	app      = kingpin.New("pubsub-bench", "multi-process PubSub scenario driver (§8)")
	role     = app.Flag("role", "writer or reader").Required().Enum("writer", "reader")
	scenario = app.Flag("scenario", "hello, drop, or durability").Default("hello").Enum("hello", "drop", "durability")
	domain   = app.Flag("domain", "pubsub domain").Default("").String()
	dir      = app.Flag("dir", "shmem registry directory both processes rendezvous through").Default(os.TempDir()).String()
	depth    = app.Flag("depth", "TRANSIENT_LOCAL depth for the durability scenario").Default("8").Int()
	count    = app.Flag("count", "payload count for the drop scenario").Default("1000").Int()
	timeout  = app.Flag("timeout", "per-message receive timeout / writer linger for durability").Default("5s").Duration()
)

// payload is the scenario 1/2/3 wire type: a CRC computed over the
// serialized form with the CRC field cleared (§8 invariant 1).
type payload struct {
	Msg  string
	Seq  int
	Data string
	CRC  uint32
}

func checksum(p payload) uint32 {
	p.CRC = 0
	return crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s|%d|%s", p.Msg, p.Seq, p.Data)))
}

func withCRC(p payload) payload {
	p.CRC = checksum(p)
	return p
}

func crcValid(p payload) bool {
	return p.CRC == checksum(p)
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := definition.NewDefaultLogger()
	log.ToggleDebug(false)

	transport, err := shmem.New(*dir, *domain, log)
	if err != nil {
		fail("shmem.New: %v", err)
	}
	defer transport.Close()

	qos := pubsub.Volatile()
	if *scenario == "durability" {
		qos = pubsub.Transient(*depth)
	}

	svc, err := pubsub.NewService(*domain, transport)
	if err != nil {
		fail("NewService: %v", err)
	}
	defer svc.Shutdown()

	facet := jsoncodec.New[payload]("pubsub-bench.payload")
	topic := pubsub.TopicInfo{Name: "bench", QoS: qos}

	switch *role {
	case "writer":
		runWriter(svc, facet, topic)
	case "reader":
		runReader(svc, facet, topic)
	}
}

func runWriter(svc *pubsub.Service, facet *jsoncodec.Facet[payload], topic pubsub.TopicInfo) {
	writer, err := pubsub.NewDataWriter[payload](svc.Publisher, facet, topic)
	if err != nil {
		fail("NewDataWriter: %v", err)
	}
	defer writer.Close()

	switch *scenario {
	case "hello":
		p := withCRC(payload{Msg: "hello", Seq: 1, Data: strings.Repeat("A", 1024)})
		if err := writer.Send(p, *timeout); err != nil {
			fail("Send: %v", err)
		}
		succeed("writer: sent hello payload")

	case "drop":
		for seq := 1; seq <= *count; seq++ {
			p := withCRC(payload{Msg: "drop", Seq: seq})
			if err := writer.Send(p, *timeout); err != nil {
				warn("writer: send seq %d failed: %v", seq, err)
			}
		}
		succeed(fmt.Sprintf("writer: sent %d payloads", *count))

	case "durability":
		for seq := 1; seq <= 5; seq++ {
			p := withCRC(payload{Msg: "durable", Seq: seq})
			if err := writer.Send(p, *timeout); err != nil {
				fail("Send(seq=%d): %v", seq, err)
			}
		}
		// Linger so a reader process started after this point still finds
		// this process alive to serve the subscription-announcement replay.
		time.Sleep(*timeout)
		succeed("writer: published seq 1..5 and lingered for replay")
	}
}

func runReader(svc *pubsub.Service, facet *jsoncodec.Facet[payload], topic pubsub.TopicInfo) {
	reader, err := pubsub.NewDataReader[payload](svc.Subscriber, facet, topic)
	if err != nil {
		fail("NewDataReader: %v", err)
	}
	defer reader.Close()

	switch *scenario {
	case "hello":
		p, err := reader.Receive(*timeout)
		if err != nil {
			fail("Receive: %v", err)
		}
		if !crcValid(p) {
			fail("CRC mismatch for payload %+v", p)
		}
		succeed("reader: CRC round trip OK")

	case "drop":
		lastSeq := 0
		totalReceived := 0
		totalDropped := 0
		for i := 0; i < *count; i++ {
			p, err := reader.Receive(*timeout)
			if isTimeout(err) {
				break
			}
			if err != nil {
				fail("Receive: %v", err)
			}
			if !crcValid(p) {
				fail("CRC mismatch for payload %+v", p)
			}
			if lastSeq > 0 && p.Seq > lastSeq+1 {
				totalDropped += p.Seq - lastSeq - 1
			}
			lastSeq = p.Seq
			totalReceived++
		}
		if totalReceived+totalDropped != *count {
			fail("invariant violated: received(%d) + dropped(%d) != count(%d)", totalReceived, totalDropped, *count)
		}
		succeed(fmt.Sprintf("reader: received %d, dropped %d, total %d", totalReceived, totalDropped, *count))

	case "durability":
		for seq := 1; seq <= 5; seq++ {
			p, err := reader.Receive(*timeout)
			if err != nil {
				fail("Receive(seq=%d): %v", seq, err)
			}
			if p.Seq != seq {
				fail("out-of-order replay: got seq %d, want %d", p.Seq, seq)
			}
			if !crcValid(p) {
				fail("CRC mismatch for payload %+v", p)
			}
		}
		succeed("reader: durability replay observed seq 1..5 in order")
	}
}

func isTimeout(err error) bool {
	perr, ok := err.(*pserr.PubSubError)
	return ok && perr.Code == pserr.PubSubCancelled
}

func succeed(msg string) {
	color.Green(msg)
	os.Exit(0)
}

func fail(format string, args ...interface{}) {
	color.Red("pubsub-bench: "+format, args...)
	os.Exit(1)
}

func warn(format string, args ...interface{}) {
	color.Yellow(format, args...)
}
