// Command demo is a small CLI, in the teacher's examples/cli-chat and
// examples/chi-server style, that feeds a canned chunked transcript
// through a chosen wire protocol and prints the resulting event stream.
// With -serve it instead runs a tiny chi router exposing the same
// transduction as an HTTP endpoint.
package main

import (
	"flag"
	"log"

	"github.com/lanehollow/toolstream/pkg/protocol"
)

func main() {
	protocolFlag := flag.String("protocol", string(protocol.TaggedJSON), "wire protocol kind (tagged-json, element-xml, yaml-in-xml, shorthand-xml, outer-container)")
	serve := flag.Bool("serve", false, "run an HTTP server instead of the canned transcript demo")
	port := flag.String("port", "8080", "port to listen on in -serve mode")
	chunkSize := flag.Int("chunk-size", 7, "bytes per simulated upstream chunk in transcript mode")
	flag.Parse()

	if *serve {
		if err := runServer(*port); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := runTranscript(protocol.Kind(*protocolFlag), *chunkSize); err != nil {
		log.Fatal(err)
	}
}
