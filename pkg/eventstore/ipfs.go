package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/provenance-network/anchor-ingestor/pkg/hashcodec"
)

// IPFSStore is the CASBackend backed by an IPFS-compatible HTTP API
// (Kubo's /api/v0 surface: add with pin=true, cat, id).
type IPFSStore struct {
	apiURL     string
	httpClient *http.Client
}

// NewIPFSStore builds an IPFSStore against apiURL (e.g. http://localhost:5001).
func NewIPFSStore(apiURL string) *IPFSStore {
	return &IPFSStore{
		apiURL:     apiURL,
		httpClient: &http.Client{},
	}
}

type addResponse struct {
	Hash string `json:"Hash"`
}

func (s *IPFSStore) add(ctx context.Context, data []byte, pin bool) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "block")
	if err != nil {
		return "", fmt.Errorf("eventstore: build ipfs add multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("eventstore: write ipfs add body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("eventstore: close ipfs add multipart: %w", err)
	}

	url := fmt.Sprintf("%s/api/v0/add?pin=%t&cid-version=1&raw-leaves=true", s.apiURL, pin)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("eventstore: build ipfs add request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("eventstore: ipfs add request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("eventstore: ipfs add returned status %d", resp.StatusCode)
	}

	var ar addResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("eventstore: decode ipfs add response: %w", err)
	}
	return ar.Hash, nil
}

// PutCanonical publishes data (the event minus "sig") and pins it.
func (s *IPFSStore) PutCanonical(ctx context.Context, data []byte) (string, error) {
	return s.add(ctx, data, true)
}

// PutFull publishes the complete signed event and pins it.
func (s *IPFSStore) PutFull(ctx context.Context, data []byte) (string, error) {
	return s.add(ctx, data, true)
}

// Get fetches a block's raw bytes by CID via /api/v0/cat.
func (s *IPFSStore) Get(ctx context.Context, cidStr string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v0/cat?arg=%s", s.apiURL, cidStr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("eventstore: build ipfs cat request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eventstore: ipfs cat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eventstore: ipfs cat returned status %d for cid %s", resp.StatusCode, cidStr)
	}
	return io.ReadAll(resp.Body)
}

func (s *IPFSStore) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v0/id", s.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("eventstore: build ipfs id request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("eventstore: ipfs id request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("eventstore: ipfs id returned status %d", resp.StatusCode)
	}
	return nil
}

// verifyDigest is a convenience used by callers that want to confirm a CID
// wraps the expected SHA-256 digest before trusting a fetched block.
func verifyDigest(cidStr, expectedHexDigest string) error {
	digest, err := hashcodec.DigestFromCID(cidStr)
	if err != nil {
		return err
	}
	if digest != expectedHexDigest {
		return fmt.Errorf("eventstore: cid %s embeds digest %s, expected %s", cidStr, digest, expectedHexDigest)
	}
	return nil
}
