package authzverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ChainClient fetches account permission sets from a chain RPC node.
type ChainClient interface {
	GetAccount(ctx context.Context, account string) (*AccountInfo, error)
}

// RPCClient implements ChainClient over a chain node's HTTP RPC surface.
type RPCClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRPCClient builds a ChainClient against baseURL, which must expose
// POST {baseURL}/v1/chain/get_account.
func NewRPCClient(baseURL string, timeout time.Duration) *RPCClient {
	return &RPCClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RPCClient) GetAccount(ctx context.Context, account string) (*AccountInfo, error) {
	endpoint, err := url.JoinPath(c.baseURL, "v1", "chain", "get_account")
	if err != nil {
		return nil, fmt.Errorf("authzverify: build endpoint: %w", err)
	}

	body, err := json.Marshal(map[string]string{"account_name": account})
	if err != nil {
		return nil, fmt.Errorf("authzverify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("authzverify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authzverify: get_account request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authzverify: get_account returned status %d", resp.StatusCode)
	}

	var info AccountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("authzverify: decode get_account response: %w", err)
	}
	info.Account = account
	return &info, nil
}
