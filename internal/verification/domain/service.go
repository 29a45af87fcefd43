package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/SrJuanF/UnitPoints-System/internal/chains/evm"
	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/validation"
)

// Service defines the verification service interface.
type Service interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// Conn is a read-only connection to a node.
type Conn interface {
	ecosystem.Backend
	ChainID() int64
	Close()
}

// Dialer opens a read-only connection. chainID zero accepts any chain.
type Dialer func(ctx context.Context, rpcURL string, chainID int64) (Conn, error)

// AnyPublicHost in AllowedHosts permits every host that does not resolve to
// a loopback, private or link-local address.
const AnyPublicHost = "*"

// Config tunes the service.
type Config struct {
	// AllowedHosts lists dialable RPC hostnames. Empty permits the public
	// hosts of the built-in networks only. Internal addresses are refused
	// unless listed by exact name.
	AllowedHosts []string
	Timeout      time.Duration
	// LookupHost resolves hostnames for AnyPublicHost. Defaults to net.DefaultResolver.
	LookupHost func(ctx context.Context, host string) ([]netip.Addr, error)
}

type service struct {
	dial   Dialer
	cfg    Config
	logger *slog.Logger
}

// NewService creates a verification service dialing through dial.
func NewService(dial Dialer, cfg Config, logger *slog.Logger) Service {
	if cfg.LookupHost == nil {
		cfg.LookupHost = func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		}
	}
	return &service{dial: dial, cfg: cfg, logger: logger}
}

type chainConn struct {
	*ecosystem.ChainBackend
	client *evm.Client
}

func (c chainConn) ChainID() int64 { return c.client.ChainID() }
func (c chainConn) Close()         { c.client.Close() }

// EVMDialer dials with evm.Dial, pacing calls at rpcRate per second.
func EVMDialer(rpcRate float64, logger *slog.Logger) Dialer {
	return func(ctx context.Context, rpcURL string, chainID int64) (Conn, error) {
		client, err := evm.Dial(ctx, evm.ClientConfig{
			RPCURL:  rpcURL,
			ChainID: chainID,
			RPCRate: rpcRate,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		backend, err := ecosystem.NewChainBackend(client)
		if err != nil {
			client.Close()
			return nil, err
		}
		return chainConn{ChainBackend: backend, client: client}, nil
	}
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	rpcURL, chainID, err := s.endpoint(req)
	if err != nil {
		return nil, err
	}
	if err := ecosystem.ValidateAddresses(req.Addresses); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if err := s.allowed(ctx, rpcURL); err != nil {
		s.logger.Warn("verification rpc refused", "network", req.Network, "error", err)
		return nil, err
	}

	conn, err := s.dial(ctx, rpcURL, chainID)
	if err != nil {
		s.logger.Warn("verification dial failed", "network", req.Network, "error", err)
		if strings.Contains(err.Error(), "chain id mismatch") {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer conn.Close()

	results := ecosystem.NewVerifier(conn).Verify(ctx, req.Addresses, req.ExpectedSector)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
	}
	return &VerifyResult{
		Network: req.Network,
		ChainID: conn.ChainID(),
		Results: results,
		Summary: ecosystem.Summarize(results),
	}, nil
}

// endpoint resolves the RPC URL and expected chain id for req.
func (s *service) endpoint(req VerifyRequest) (string, int64, error) {
	if err := validation.ValidateNetworkName(req.Network); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	rpcURL, chainID := req.RPCURL, req.ChainID
	if builtin, ok := ecosystem.LookupNetwork(req.Network); ok {
		if rpcURL == "" {
			rpcURL = builtin.RPCURL
		}
		if chainID == 0 {
			chainID = builtin.ChainID
		}
	}
	if rpcURL == "" {
		return "", 0, fmt.Errorf("%w: rpcUrl is required for network %q", ErrInvalidRequest, req.Network)
	}
	if req.ExpectedSector < 0 {
		return "", 0, fmt.Errorf("%w: expectedSector must not be negative", ErrInvalidRequest)
	}
	return rpcURL, chainID, nil
}

func (s *service) allowed(ctx context.Context, rpcURL string) error {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: malformed rpcUrl", ErrInvalidRequest)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported rpcUrl scheme %q", ErrInvalidRequest, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if slices.Contains(s.cfg.AllowedHosts, host) {
		return nil
	}
	if internalHost(host) {
		return fmt.Errorf("%w: %s is an internal address", ErrRPCNotAllowed, host)
	}

	switch {
	case slices.Contains(s.cfg.AllowedHosts, AnyPublicHost):
		if _, err := netip.ParseAddr(host); err == nil {
			return nil
		}
		ips, err := s.cfg.LookupHost(ctx, host)
		if err != nil {
			return fmt.Errorf("%w: resolving %s: %v", ErrUnreachable, host, err)
		}
		for _, ip := range ips {
			if internalAddr(ip) {
				return fmt.Errorf("%w: %s resolves to an internal address", ErrRPCNotAllowed, host)
			}
		}
		return nil
	case len(s.cfg.AllowedHosts) == 0 && builtinHost(host):
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRPCNotAllowed, host)
}

// cgnat is the shared address space of RFC 6598
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

func internalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip, err := netip.ParseAddr(host)
	return err == nil && internalAddr(ip)
}

func internalAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() || cgnat.Contains(ip)
}

// builtinHost reports whether host serves a built-in network from a public address.
func builtinHost(host string) bool {
	for _, n := range ecosystem.BuiltinNetworks() {
		u, err := url.Parse(n.RPCURL)
		if err != nil {
			continue
		}
		h := strings.ToLower(u.Hostname())
		if h == host && !internalHost(h) {
			return true
		}
	}
	return false
}

// IsClientError reports whether err was caused by the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrRPCNotAllowed)
}
