package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchutil"
	"go.uber.org/zap"

	"bchfaucet/internal/config"
	"bchfaucet/internal/model"
	"bchfaucet/internal/repository"
	"bchfaucet/internal/wallet"
)

const (
	msgAlreadyPaid   = "IP or Address found in DB"
	msgBadOrigin     = "Request does not originate from an allowed website."
	msgDrained       = "Too much tBCH being drained. Wait an hour and try again."
	msgBlacklisted   = "IP address has been black listed."
	msgInvalidAddr   = "Invalid BCH cash address."
	msgPayoutSuccess = "Coins sent."
)

// Payer is the wallet the faucet pays from.
type Payer interface {
	Params() *chaincfg.Params
	IsOwn(addr string) bool
	Balance(ctx context.Context) (int64, error)
	Send(ctx context.Context, to bchutil.Address, amount int64) (string, error)
}

// PayoutRequest describes a faucet request.
type PayoutRequest struct {
	Address string
	IP      string
	Origin  string
}

// PayoutResult is returned for both payouts and soft rejections.
type PayoutResult struct {
	Success bool   `json:"success"`
	TxID    string `json:"txid,omitempty"`
	Message string `json:"message,omitempty"`
}

// FaucetService dispenses testnet coins under abuse controls.
type FaucetService interface {
	Balance(ctx context.Context) (int64, error)
	Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	SweepIPs(ctx context.Context) (int64, error)
	RunSweeper(ctx context.Context)
}

type faucetService struct {
	cfg     config.FaucetConfig
	payer   Payer
	ips     repository.IPRepository
	addrs   repository.AddressRepository
	counter SpendCounter
	log     *zap.Logger
	now     func() time.Time

	// payoutMu serializes the check, spend and record sequence.
	payoutMu sync.Mutex
}

// NewFaucetService creates a faucet backed by the given wallet and stores.
func NewFaucetService(
	cfg config.FaucetConfig,
	payer Payer,
	ips repository.IPRepository,
	addrs repository.AddressRepository,
	counter SpendCounter,
	log *zap.Logger,
) FaucetService {
	return &faucetService{
		cfg:     cfg,
		payer:   payer,
		ips:     ips,
		addrs:   addrs,
		counter: counter,
		log:     log,
		now:     time.Now,
	}
}

func (s *faucetService) Balance(ctx context.Context) (int64, error) {
	return s.payer.Balance(ctx)
}

// Payout runs the abuse checks in order and pays out when all pass. Soft rejections are
// reported in the result; only store and network failures are returned as errors.
func (s *faucetService) Payout(ctx context.Context, req PayoutRequest) (*PayoutResult, error) {
	s.payoutMu.Lock()
	defer s.payoutMu.Unlock()

	// dedup on the canonical form so prefixed, bare and legacy spellings match
	if decoded, err := wallet.DecodeAddress(req.Address, s.payer.Params()); err == nil {
		req.Address = wallet.CashAddress(decoded, s.payer.Params())
	}

	selfTest := s.payer.IsOwn(req.Address)
	if !selfTest {
		reason, err := s.reject(ctx, req)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			s.log.Info("payout rejected",
				zap.String("reason", reason),
				zap.String("ip", req.IP),
				zap.String("address", req.Address),
				zap.String("origin", req.Origin),
			)
			return &PayoutResult{Success: false, Message: reason}, nil
		}
	}

	to, err := wallet.DecodeAddress(req.Address, s.payer.Params())
	if err != nil {
		return &PayoutResult{Success: false, Message: msgInvalidAddr}, nil
	}

	txid, err := s.payer.Send(ctx, to, s.cfg.SatsToSend)
	if err != nil {
		s.log.Error("payout failed", zap.Error(err), zap.String("address", req.Address), zap.String("ip", req.IP))
		return nil, fmt.Errorf("send payout: %w", err)
	}

	if !selfTest {
		s.record(ctx, req, txid)
	}
	if err := s.counter.Add(ctx, s.cfg.SatsToSend); err != nil {
		s.log.Error("spend counter update failed", zap.Error(err), zap.String("txid", txid))
	}

	s.log.Info("payout sent",
		zap.String("txid", txid),
		zap.String("address", req.Address),
		zap.String("ip", req.IP),
		zap.Int64("sats", s.cfg.SatsToSend),
	)
	return &PayoutResult{Success: true, TxID: txid, Message: msgPayoutSuccess}, nil
}

// reject returns the first failing check as a reason, or "" when the request may proceed.
func (s *faucetService) reject(ctx context.Context, req PayoutRequest) (string, error) {
	if req.IP == "" {
		return msgAlreadyPaid, nil
	}
	seen, err := s.ips.Exists(ctx, req.IP)
	if err != nil {
		return "", fmt.Errorf("check ip: %w", err)
	}
	if seen {
		return msgAlreadyPaid, nil
	}

	paid, err := s.addrs.Exists(ctx, req.Address)
	if err != nil {
		return "", fmt.Errorf("check address: %w", err)
	}
	if paid {
		return msgAlreadyPaid, nil
	}

	total, err := s.counter.Total(ctx)
	if err != nil {
		return "", err
	}
	if total > s.cfg.SatsPerHour {
		return msgDrained, nil
	}

	if len(s.cfg.AllowedOrigins) > 0 && !contains(s.cfg.AllowedOrigins, req.Origin) {
		return msgBadOrigin, nil
	}
	for _, prefix := range s.cfg.IPBlacklist {
		if strings.HasPrefix(req.IP, prefix) {
			return msgBlacklisted, nil
		}
	}
	return "", nil
}

// record marks the IP and address as paid. The coins are already sent, so failures are only logged.
func (s *faucetService) record(ctx context.Context, req PayoutRequest, txid string) {
	if err := s.ips.Create(ctx, &model.IPRecord{IPAddress: req.IP, Timestamp: s.now()}); err != nil {
		s.log.Error("save ip record failed", zap.Error(err), zap.String("ip", req.IP), zap.String("txid", txid))
	}
	if err := s.addrs.Create(ctx, &model.AddressRecord{BchAddress: req.Address, TxID: txid}); err != nil {
		s.log.Error("save address record failed", zap.Error(err), zap.String("address", req.Address), zap.String("txid", txid))
	}
}

// SweepIPs deletes IP records older than the retention window.
func (s *faucetService) SweepIPs(ctx context.Context) (int64, error) {
	n, err := s.ips.DeleteOlderThan(ctx, s.now().Add(-s.cfg.IPRetention))
	if err != nil {
		return 0, fmt.Errorf("sweep ip records: %w", err)
	}
	return n, nil
}

// RunSweeper sweeps once immediately and then every SweepInterval until ctx is done.
func (s *faucetService) RunSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := s.SweepIPs(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Error("ip sweep failed", zap.Error(err))
			}
		} else if n > 0 {
			s.log.Info("ip records swept", zap.Int64("deleted", n))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
