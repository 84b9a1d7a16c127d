package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/lanehollow/toolstream/pkg/protocol"
	"github.com/lanehollow/toolstream/pkg/schema"
	"github.com/lanehollow/toolstream/pkg/toolstream"
	"github.com/lanehollow/toolstream/pkg/transducer"
)

// runServer starts a chi router exposing POST /transduce, adapted from
// examples/chi-server: same middleware stack (Logger, Recoverer, a
// request Timeout, permissive CORS), the same pattern of decoding a
// request struct and writing a JSON response, generalized here from
// "send a prompt, get text back" to "send chunks, get an NDJSON event
// stream back" — this is a caller driving the transducer over HTTP, not
// a provider client, so it sits outside the parser's own boundary.
func runServer(port string) error {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"service":   "toolstream demo server",
			"protocols": protocol.Kinds(),
		})
	})

	r.Post("/transduce", handleTransduce)

	fmt.Printf("toolstream demo server on :%s\n", port)
	return http.ListenAndServe(":"+port, r)
}

type transduceTool struct {
	Name        string                 `json:"name"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type transduceRequest struct {
	Protocol string          `json:"protocol"`
	Tools    []transduceTool `json:"tools"`
	Chunks   []string        `json:"chunks"`
}

func handleTransduce(w http.ResponseWriter, r *http.Request) {
	var req transduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind := protocol.Kind(req.Protocol)
	if _, ok := protocol.Lookup(kind); !ok {
		http.Error(w, fmt.Sprintf("unknown protocol %q", req.Protocol), http.StatusBadRequest)
		return
	}

	tools := make([]toolstream.ToolDescriptor, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, toolstream.ToolDescriptor{Name: t.Name, InputSchema: schema.New(t.InputSchema)})
	}

	runID := uuid.NewString()
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Run-Id", runID)
	flusher, canFlush := w.(http.Flusher)

	opts := toolstream.ParserOptions{
		OnError: func(message string, metadata map[string]interface{}) {
			writeNDJSON(w, toolstream.StreamEvent{Kind: toolstream.EventError, Err: fmt.Errorf("%s", message)})
			if canFlush {
				flusher.Flush()
			}
		},
	}

	tr, err := transducer.New(kind, tools, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	enqueue := func(e toolstream.StreamEvent) {
		writeNDJSON(w, e)
		if canFlush {
			flusher.Flush()
		}
	}

	tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamStreamStart}, enqueue)
	for _, chunk := range req.Chunks {
		tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamTextDelta, Text: chunk}, enqueue)
	}
	tr.Transform(toolstream.UpstreamEvent{Kind: toolstream.UpstreamFinish, FinishReason: toolstream.FinishReasonStop}, enqueue)
	tr.Flush(enqueue)
}

func writeNDJSON(w http.ResponseWriter, e toolstream.StreamEvent) {
	b, err := json.Marshal(toWireEvent(e))
	if err != nil {
		return
	}
	w.Write(b)
	w.Write([]byte("\n"))
}
