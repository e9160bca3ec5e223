package wallet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchutil"
	"github.com/shopspring/decimal"
)

// ErrInvalidAddress is returned for malformed addresses or addresses of another network.
var ErrInvalidAddress = errors.New("invalid BCH cash address")

// Params maps a network name to chain parameters.
func Params(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// DecodeAddress parses a cash address (with or without prefix) or a legacy address and
// checks it belongs to params.
func DecodeAddress(addr string, params *chaincfg.Params) (bchutil.Address, error) {
	addr = strings.TrimSpace(addr)
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		if !strings.EqualFold(addr[:i], params.CashAddressPrefix) {
			return nil, ErrInvalidAddress
		}
		addr = addr[i+1:]
	}
	if addr == "" {
		return nil, ErrInvalidAddress
	}

	decoded, err := bchutil.DecodeAddress(strings.ToLower(addr), params)
	if err != nil {
		// legacy addresses are case sensitive
		decoded, err = bchutil.DecodeAddress(addr, params)
		if err != nil {
			return nil, ErrInvalidAddress
		}
	}
	if !decoded.IsForNet(params) {
		return nil, ErrInvalidAddress
	}
	return decoded, nil
}

// CashAddress formats addr as a prefixed cash address. Legacy addresses are converted.
func CashAddress(addr bchutil.Address, params *chaincfg.Params) string {
	switch legacy := addr.(type) {
	case *bchutil.LegacyAddressPubKeyHash:
		if converted, err := bchutil.NewAddressPubKeyHash(legacy.ScriptAddress(), params); err == nil {
			addr = converted
		}
	case *bchutil.LegacyAddressScriptHash:
		if converted, err := bchutil.NewAddressScriptHashFromHash(legacy.ScriptAddress(), params); err == nil {
			addr = converted
		}
	}
	prefix := params.CashAddressPrefix + ":"
	return prefix + strings.TrimPrefix(addr.EncodeAddress(), prefix)
}

// SameAddress reports whether a and b decode to the same script hash on params.
func SameAddress(a, b string, params *chaincfg.Params) bool {
	da, err := DecodeAddress(a, params)
	if err != nil {
		return false
	}
	db, err := DecodeAddress(b, params)
	if err != nil {
		return false
	}
	return bytes.Equal(da.ScriptAddress(), db.ScriptAddress())
}

// SatsToBCH converts satoshis to a BCH amount.
func SatsToBCH(sats int64) decimal.Decimal {
	return decimal.New(sats, -8)
}
