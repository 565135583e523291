package ovo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

const usageCSV = `NMI,Register,ReadConsumption,ReadUnit,ReadDate,ReadTime
6123456789,E1,1.25,kWh,2025-06-01,00:00:00
6123456789,E1,0.75,kWh,2025-06-01,01:00:00
6123456789,E2,0.40,kWh,2025-06-01,00:00:00
`

// usageSession returns a logged-in session pointed at a fake portal serving
// the GraphQL endpoint and the signed CSV download.
func usageSession(t *testing.T, csvBody string) *Session {
	mux := http.NewServeMux()

	var serverURL string
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "id-1", r.Header.Get("myovo-id-token"))

		var payload struct {
			OperationName string `json:"operationName"`
			Variables     struct {
				Input struct {
					ID string `json:"id"`
				} `json:"input"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "GetUsageDownloadUrl", payload.OperationName)
		assert.Equal(t, "acct-1", payload.Variables.Input.ID)

		fmt.Fprintf(w, `{"data":{"GetAccountInfo":{"usage":{"usageDownloadUrl":%q}}}}`, serverURL+"/export.csv")
	})
	mux.HandleFunc("/export.csv", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, csvBody)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	s := NewSession(nil, WithBaseURLs(server.URL, server.URL), WithHTTPClient(server.Client()))
	s.creds = &Credential{
		AccessToken: "token-1",
		IDToken:     "id-1",
		Expiry:      time.Now().Add(time.Hour),
	}
	return s
}

func TestHourlyUsage(t *testing.T) {
	s := usageSession(t, usageCSV)

	readings, err := s.HourlyUsage(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, readings, 3)

	assert.Equal(t, provider.RawReading{
		Channel:        "E1",
		Value:          1.25,
		Unit:           "kWh",
		LocalTimestamp: "2025-06-01 00:00:00",
	}, readings[0])
	assert.Equal(t, "E2", readings[2].Channel)
	assert.InDelta(t, 0.40, readings[2].Value, 1e-9)
}

func TestHourlyUsageSchemaErrors(t *testing.T) {
	t.Run("MissingColumn", func(t *testing.T) {
		s := usageSession(t, "NMI,Register,ReadConsumption,ReadUnit,ReadTime\nx,E1,1,kWh,00:00:00\n")

		_, err := s.HourlyUsage(context.Background(), "acct-1")
		var schemaErr *provider.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Missing, "ReadDate")
	})

	t.Run("NonNumericConsumption", func(t *testing.T) {
		s := usageSession(t, "Register,ReadConsumption,ReadUnit,ReadDate,ReadTime\nE1,lots,kWh,2025-06-01,00:00:00\n")

		_, err := s.HourlyUsage(context.Background(), "acct-1")
		var schemaErr *provider.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Reason, "ReadConsumption")
	})

	t.Run("ShortRow", func(t *testing.T) {
		s := usageSession(t, "Register,ReadConsumption,ReadUnit,ReadDate,ReadTime\nE1,1.0\n")

		_, err := s.HourlyUsage(context.Background(), "acct-1")
		var schemaErr *provider.SchemaError
		require.ErrorAs(t, err, &schemaErr)
	})
}

func TestUsageDownloadURLMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"GetAccountInfo":{"usage":{}}}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewSession(nil, WithBaseURLs(server.URL, server.URL), WithHTTPClient(server.Client()))
	s.creds = &Credential{AccessToken: "token-1", Expiry: time.Now().Add(time.Hour)}

	_, err := s.HourlyUsage(context.Background(), "acct-1")
	var schemaErr *provider.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, "usageDownloadUrl")
}

func TestParseUsageCSVEmptyBody(t *testing.T) {
	_, err := parseUsageCSV(nil)
	var schemaErr *provider.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}
