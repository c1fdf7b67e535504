package middleware

import (
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() see through reverse proxies in the given
// CIDRs. Forwarding headers from any other peer are ignored, so a client
// cannot dodge the per-IP auth rate limit by sending its own
// X-Forwarded-For.
//
// Only the listed ranges are trusted; echo's default trust of loopback and
// private networks is switched off.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy range",
				slog.String("cidr", cidr),
				slog.Any("error", err),
			)
			continue
		}
		opts = append(opts, echo.TrustIPRange(network))
	}

	// The rightmost untrusted X-Forwarded-For hop is the client.
	e.IPExtractor = echo.ExtractIPFromXFFHeader(opts...)
}
