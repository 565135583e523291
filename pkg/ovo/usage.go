package ovo

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

const usageQuery = `
query GetUsageDownloadUrl($input: GetAccountInfoInput!) {
    GetAccountInfo(input: $input) {
        usage {
            usageDownloadUrl(input: $input)
        }
    }
}
`

// Columns the usage CSV must carry. Register discriminates channels, e.g.
// normal load vs controlled load.
var requiredColumns = []string{"Register", "ReadConsumption", "ReadUnit", "ReadDate", "ReadTime"}

const (
	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
)

type usageURLResponse struct {
	Data struct {
		GetAccountInfo struct {
			Usage struct {
				UsageDownloadURL string `json:"usageDownloadUrl"`
			} `json:"usage"`
		} `json:"GetAccountInfo"`
	} `json:"data"`
}

// HourlyUsage asks the portal for a signed CSV export of the account's
// half-hourly register reads and returns one raw reading per row, labeled by
// register. Timestamps stay in the account's civil time; the normalizer owns
// timezone interpretation.
func (s *Session) HourlyUsage(ctx context.Context, accountID string) ([]provider.RawReading, error) {
	var downloadURL string
	err := provider.Retry(ctx, fetchAttempts, fetchBackoff, func() error {
		var err error
		downloadURL, err = s.usageDownloadURL(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var body []byte
	err = provider.Retry(ctx, fetchAttempts, fetchBackoff, func() error {
		var err error
		body, err = s.download(ctx, downloadURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	readings, err := parseUsageCSV(body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ovo usage fetched",
		zap.String("account_id", accountID),
		zap.Int("rows", len(readings)))
	return readings, nil
}

func (s *Session) usageDownloadURL(ctx context.Context, accountID string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"operationName": "GetUsageDownloadUrl",
		"variables": map[string]any{
			"input": map[string]any{"id": accountID},
		},
		"query": usageQuery,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.appBase+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &provider.FetchError{Provider: "ovo", Status: resp.StatusCode, Body: string(body)}
	}

	var out usageURLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &provider.SchemaError{Provider: "ovo", Reason: fmt.Sprintf("undecodable usage response: %v", err)}
	}
	downloadURL := out.Data.GetAccountInfo.Usage.UsageDownloadURL
	if downloadURL == "" {
		return "", &provider.SchemaError{Provider: "ovo", Missing: []string{"usageDownloadUrl"}}
	}
	return downloadURL, nil
}

func (s *Session) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.FetchError{Provider: "ovo", Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func parseUsageCSV(data []byte) ([]provider.RawReading, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &provider.SchemaError{Provider: "ovo", Reason: fmt.Sprintf("unreadable CSV header: %v", err)}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &provider.SchemaError{Provider: "ovo", Missing: missing}
	}

	var readings []provider.RawReading
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &provider.SchemaError{Provider: "ovo", Reason: fmt.Sprintf("unreadable CSV row %d: %v", line, err)}
		}

		if len(row) < len(header) {
			return nil, &provider.SchemaError{Provider: "ovo", Reason: fmt.Sprintf("short CSV row %d: %d of %d fields", line, len(row), len(header))}
		}

		value, err := strconv.ParseFloat(row[index["ReadConsumption"]], 64)
		if err != nil {
			return nil, &provider.SchemaError{Provider: "ovo", Reason: fmt.Sprintf("non-numeric ReadConsumption on row %d: %q", line, row[index["ReadConsumption"]])}
		}

		readings = append(readings, provider.RawReading{
			Channel:        row[index["Register"]],
			Value:          value,
			Unit:           row[index["ReadUnit"]],
			LocalTimestamp: row[index["ReadDate"]] + " " + row[index["ReadTime"]],
		})
	}
	return readings, nil
}
