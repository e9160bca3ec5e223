package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchd/chaincfg/chainhash"
	"github.com/gcash/bchd/txscript"
	"github.com/gcash/bchd/wire"
	"github.com/gcash/bchutil"

	apperrors "bchfaucet/internal/errors"
)

const (
	// dustLimit is the smallest change output worth creating.
	dustLimit = 546

	txOverheadBytes  = 10
	p2pkhInputBytes  = 148
	p2pkhOutputBytes = 34
)

// Info is the on-disk wallet file.
type Info struct {
	CashAddress   string `json:"cashAddress"`
	LegacyAddress string `json:"legacyAddress"`
	WIF           string `json:"wif"`
}

// LoadInfo reads a wallet file.
func LoadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse wallet file: %w", err)
	}
	if info.WIF == "" {
		return nil, errors.New("wallet file has no wif")
	}
	return &info, nil
}

// Wallet signs and broadcasts payouts from a single P2PKH key.
type Wallet struct {
	params      *chaincfg.Params
	key         *bchutil.WIF
	address     bchutil.Address
	chain       Chain
	satsPerByte int64
}

// New builds a wallet from info. The key must belong to params and, when info names a
// cash address, derive that address.
func New(info *Info, params *chaincfg.Params, chain Chain, satsPerByte int64) (*Wallet, error) {
	key, err := bchutil.DecodeWIF(info.WIF)
	if err != nil {
		return nil, fmt.Errorf("decode wif: %w", err)
	}
	if !key.IsForNet(params) {
		return nil, fmt.Errorf("wif is not for %s", params.Name)
	}

	address, err := bchutil.NewAddressPubKeyHash(bchutil.Hash160(key.SerializePubKey()), params)
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}

	w := &Wallet{
		params:      params,
		key:         key,
		address:     address,
		chain:       chain,
		satsPerByte: satsPerByte,
	}
	if info.CashAddress != "" && !SameAddress(info.CashAddress, w.Address(), params) {
		return nil, fmt.Errorf("wallet key does not match %s", info.CashAddress)
	}
	return w, nil
}

// Address returns the faucet's own prefixed cash address.
func (w *Wallet) Address() string {
	return CashAddress(w.address, w.params)
}

// Params returns the network the wallet operates on.
func (w *Wallet) Params() *chaincfg.Params {
	return w.params
}

// IsOwn reports whether addr is the faucet's own address.
func (w *Wallet) IsOwn(addr string) bool {
	return SameAddress(addr, w.Address(), w.params)
}

// Balance returns confirmed plus unconfirmed satoshis of the faucet address.
func (w *Wallet) Balance(ctx context.Context) (int64, error) {
	b, err := w.chain.Balance(ctx, w.Address())
	if err != nil {
		return 0, err
	}
	return b.Total(), nil
}

// Send pays amount satoshis to the destination from the largest UTXO and returns the txid.
func (w *Wallet) Send(ctx context.Context, to bchutil.Address, amount int64) (string, error) {
	utxos, err := w.chain.UTXOs(ctx, w.Address())
	if err != nil {
		return "", err
	}
	utxo, ok := BiggestUTXO(utxos)
	if !ok {
		return "", apperrors.ErrNoUTXO
	}

	tx, err := w.BuildTx(utxo, to, amount)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("serialize tx: %w", err)
	}
	return w.chain.Broadcast(ctx, hex.EncodeToString(buf.Bytes()))
}

// BuildTx spends utxo to the destination, returning change to the faucet address.
func (w *Wallet) BuildTx(utxo UTXO, to bchutil.Address, amount int64) (*wire.MsgTx, error) {
	fee := Fee(1, 2, w.satsPerByte)
	change := utxo.Value - amount - fee
	if change < 0 {
		return nil, apperrors.ErrInsufficientFunds
	}

	prevHash, err := chainhash.NewHashFromStr(utxo.TxID)
	if err != nil {
		return nil, fmt.Errorf("parse utxo txid: %w", err)
	}

	payScript, err := txscript.PayToAddrScript(to)
	if err != nil {
		return nil, fmt.Errorf("destination script: %w", err)
	}
	ownScript, err := txscript.PayToAddrScript(w.address)
	if err != nil {
		return nil, fmt.Errorf("change script: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(prevHash, utxo.Vout),
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(amount, payScript))
	if change >= dustLimit {
		tx.AddTxOut(wire.NewTxOut(change, ownScript))
	}

	sigScript, err := txscript.SignatureScript(tx, 0, utxo.Value, ownScript,
		txscript.SigHashAll|txscript.SigHashForkID, w.key.PrivKey, w.key.CompressPubKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	tx.TxIn[0].SignatureScript = sigScript

	return tx, nil
}

// BiggestUTXO returns the output with the highest value.
func BiggestUTXO(utxos []UTXO) (UTXO, bool) {
	if len(utxos) == 0 {
		return UTXO{}, false
	}
	best := utxos[0]
	for _, u := range utxos[1:] {
		if u.Value > best.Value {
			best = u
		}
	}
	return best, true
}

// Fee estimates a P2PKH transaction fee.
func Fee(inputs, outputs int, satsPerByte int64) int64 {
	size := txOverheadBytes + p2pkhInputBytes*inputs + p2pkhOutputBytes*outputs
	return int64(size) * satsPerByte
}
