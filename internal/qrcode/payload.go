package qrcode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anand-gl/jsoncanonicalizer"
)

// Payload is the JSON document embedded in every QR label.
type Payload struct {
	IDCode      string `json:"idCode"`
	LabName     string `json:"labName"`
	Description string `json:"description"`
	SystemURL   string `json:"systemUrl"`
}

// SystemURL is the canonical deep link for a record id.
func SystemURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/system/" + id
}

func BuildPayload(baseURL, id, idCode, labName, description string) Payload {
	return Payload{
		IDCode:      idCode,
		LabName:     labName,
		Description: description,
		SystemURL:   SystemURL(baseURL, id),
	}
}

// Marshal serializes p as RFC 8785 canonical JSON so identical payloads always produce identical bytes.
func (p Payload) Marshal() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonical, nil
}

func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}
