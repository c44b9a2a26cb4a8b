// Package wellknown maps IANA service names to PROTOCOL/PORT tokens. The
// registry backs the optional service-resolution step of the rule-table
// loaders, turning bare names like "https" into tokens the analyses can
// compare.
package wellknown

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	_ "embed"
)

//go:embed well_known_ports.csv
var wellKnownPortsData string

var serviceRegistry map[string][]string

func init() {
	serviceRegistry = make(map[string][]string)
	reader := csv.NewReader(bytes.NewBufferString(wellKnownPortsData))
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Fatalf("Failed to read header from embedded well_known_ports.csv: %v", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to parse embedded well_known_ports.csv: %v", err)
		}
		if len(record) < 3 {
			continue
		}

		port, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}

		register(record[1], fmt.Sprintf("TCP/%d", port))
		register(record[2], fmt.Sprintf("UDP/%d", port))
	}
}

func register(name, token string) {
	name = strings.TrimSpace(name)
	if name == "" || name == "N/A" {
		return
	}
	key := strings.ToUpper(name)
	serviceRegistry[key] = append(serviceRegistry[key], token)
	// Common alias for DNS.
	if name == "domain" {
		serviceRegistry["DNS"] = append(serviceRegistry["DNS"], token)
	}
}

// Tokens returns the PROTOCOL/PORT tokens for a well-known service name.
func Tokens(name string) ([]string, bool) {
	tokens, ok := serviceRegistry[strings.ToUpper(strings.TrimSpace(name))]
	return tokens, ok
}
