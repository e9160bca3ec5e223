package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Balance is the Blockbook view of an address, in satoshis.
type Balance struct {
	Confirmed   int64
	Unconfirmed int64
}

// Total returns confirmed plus unconfirmed satoshis.
func (b Balance) Total() int64 {
	return b.Confirmed + b.Unconfirmed
}

// UTXO is an unspent output controlled by the faucet.
type UTXO struct {
	TxID  string
	Vout  uint32
	Value int64
}

// Chain is the indexer the wallet reads balances and UTXOs from and broadcasts through.
type Chain interface {
	Balance(ctx context.Context, address string) (Balance, error)
	UTXOs(ctx context.Context, address string) ([]UTXO, error)
	Broadcast(ctx context.Context, rawTxHex string) (string, error)
}

// RESTClient talks to a bch-api compatible REST server.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient creates a client rooted at baseURL, e.g. https://api.fullstack.cash/v3/.
func NewRESTClient(baseURL, token string, timeout time.Duration) *RESTClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type blockbookBalance struct {
	Balance            string `json:"balance"`
	UnconfirmedBalance string `json:"unconfirmedBalance"`
}

type blockbookUTXO struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value string `json:"value"`
}

func (c *RESTClient) Balance(ctx context.Context, address string) (Balance, error) {
	var raw blockbookBalance
	if err := c.get(ctx, "blockbook/balance/"+url.PathEscape(address), &raw); err != nil {
		return Balance{}, fmt.Errorf("fetch balance: %w", err)
	}
	confirmed, err := parseSats(raw.Balance)
	if err != nil {
		return Balance{}, fmt.Errorf("parse balance: %w", err)
	}
	unconfirmed, err := parseSats(raw.UnconfirmedBalance)
	if err != nil {
		return Balance{}, fmt.Errorf("parse unconfirmed balance: %w", err)
	}
	return Balance{Confirmed: confirmed, Unconfirmed: unconfirmed}, nil
}

func (c *RESTClient) UTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var raw []blockbookUTXO
	if err := c.get(ctx, "blockbook/utxos/"+url.PathEscape(address), &raw); err != nil {
		return nil, fmt.Errorf("fetch utxos: %w", err)
	}
	utxos := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		value, err := parseSats(u.Value)
		if err != nil {
			return nil, fmt.Errorf("parse utxo %s:%d: %w", u.TxID, u.Vout, err)
		}
		utxos = append(utxos, UTXO{TxID: u.TxID, Vout: u.Vout, Value: value})
	}
	return utxos, nil
}

func (c *RESTClient) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "rawtransactions/sendRawTransaction/"+rawTxHex, &raw); err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err == nil && txid != "" {
		return txid, nil
	}
	var txids []string
	if err := json.Unmarshal(raw, &txids); err == nil && len(txids) > 0 && txids[0] != "" {
		return txids[0], nil
	}
	return "", fmt.Errorf("broadcast: unexpected response %s", string(raw))
}

func (c *RESTClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func parseSats(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
