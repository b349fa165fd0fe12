package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	server "stream-rush/server"
	"stream-rush/server/internal/donation"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// wireProtocol groups every message exchanged with subscribers so the
// reflector emits one document covering the full surface.
type wireProtocol struct {
	Donation       donation.Event              `json:"donation"`
	DonationEvent  server.DonationEventMessage `json:"donation_event"`
	Gamestate      server.GamestateMessage     `json:"gamestate_update"`
	Overlay        server.OverlayMessage       `json:"overlay_update"`
	DonationReject server.DonationReject       `json:"donation_reject"`
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireProtocol))
	schema.Title = "Stream Rush Wire Protocol"
	schema.Description = "Validates the JSON messages exchanged between the server, play clients, and overlays"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
