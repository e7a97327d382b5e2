package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/icodex/icodex/pkg/dex"
)

// RPCOracle answers balance queries against a Solana JSON-RPC node.
// Native SOL balances come from getBalance (lamports); SPL balances sum
// the owner's token accounts for the mint via getTokenAccountsByOwner.
//
// It fails closed: any transport, RPC or decode failure is returned as an
// error, never as "balance sufficient".
type RPCOracle struct {
	endpoint string
	client   *http.Client
	log      *zap.SugaredLogger
}

func NewRPCOracle(endpoint string, timeout time.Duration, log *zap.SugaredLogger) *RPCOracle {
	return &RPCOracle{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (o *RPCOracle) HasBalance(ctx context.Context, principal string, asset dex.Asset, amount uint64) (bool, error) {
	var (
		held uint64
		err  error
	)
	if asset.Mint == "" {
		held, err = o.lamports(ctx, principal)
	} else {
		held, err = o.tokenBalance(ctx, principal, asset.Mint)
	}
	if err != nil {
		return false, err
	}
	o.log.Debugw("oracle_balance", "principal", principal, "mint", asset.Mint, "held", held, "need", amount)
	return held >= amount, nil
}

func (o *RPCOracle) lamports(ctx context.Context, owner string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := o.call(ctx, "getBalance", []any{owner}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (o *RPCOracle) tokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	params := []any{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed"},
	}
	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := o.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, err
	}
	var total uint64
	for _, v := range result.Value {
		n, err := strconv.ParseUint(v.Account.Data.Parsed.Info.TokenAmount.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("token amount %q: %w", v.Account.Data.Parsed.Info.TokenAmount.Amount, err)
		}
		total += n
	}
	return total, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (o *RPCOracle) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: rpc status %d", method, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	return json.Unmarshal(envelope.Result, result)
}

var _ dex.BalanceOracle = (*RPCOracle)(nil)
