package middleware

// identity.go derives the client identity used for rate limiting and puts
// request-scoped values into the request context for logging.

import (
	"fmt"
	"net"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/logger"
)

// ClientIPExtractor decides which address identifies a client.  With no
// trusted proxies the socket peer is used and forwarding headers are
// ignored.  Otherwise X-Forwarded-For is honoured only across hops inside
// the given CIDRs.
func ClientIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// ClientIdentity returns the caller's address as resolved by the Echo
// instance's IP extractor, or "unknown".
func ClientIdentity(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// RequestIDHandler is the hook for echo's RequestID middleware: it copies the
// generated id and the client identity into the request context.
func RequestIDHandler(c echo.Context, id string) {
	ctx := logger.WithRequestID(c.Request().Context(), id)
	ctx = logger.WithClient(ctx, ClientIdentity(c))
	c.SetRequest(c.Request().WithContext(ctx))
}
