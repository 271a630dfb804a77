package middleware

import (
	"net"
	"net/http"
	"strings"
)

// BypassEvaluator reports whether a request skips rate limiting and why.
type BypassEvaluator func(r *http.Request) (bool, string)

// RequestBypassConfig controls which traffic is exempt from rate limiting.
// Health probes come from orchestrators and gateway webhooks come in bursts
// during retry storms; neither should burn client quota.
type RequestBypassConfig struct {
	EnableInternalProbeBypass bool
	WebhookPath               string
	TrustedWebhookCIDRs       []string
}

type requestBypassMatcher struct {
	enableProbeBypass bool
	webhookPath       string
	webhookCIDRs      []*net.IPNet
}

func NewRequestBypassEvaluator(cfg RequestBypassConfig) BypassEvaluator {
	m := &requestBypassMatcher{
		enableProbeBypass: cfg.EnableInternalProbeBypass,
		webhookPath:       strings.TrimSpace(strings.ToLower(cfg.WebhookPath)),
		webhookCIDRs:      make([]*net.IPNet, 0, len(cfg.TrustedWebhookCIDRs)),
	}

	for _, cidr := range cfg.TrustedWebhookCIDRs {
		v := strings.TrimSpace(cidr)
		if v == "" {
			continue
		}
		_, network, err := net.ParseCIDR(v)
		if err != nil {
			continue
		}
		m.webhookCIDRs = append(m.webhookCIDRs, network)
	}

	if !m.enableProbeBypass && (m.webhookPath == "" || len(m.webhookCIDRs) == 0) {
		return nil
	}
	return m.Match
}

func (m *requestBypassMatcher) Match(r *http.Request) (bool, string) {
	if r == nil {
		return false, ""
	}
	path := strings.TrimSpace(strings.ToLower(r.URL.Path))

	if m.enableProbeBypass {
		switch path {
		case "/health/live", "/health/ready":
			return true, "internal_probe_path"
		}
	}

	if m.webhookPath != "" && path == m.webhookPath && len(m.webhookCIDRs) > 0 {
		if ip := parseRequestIP(r); ip != nil {
			for _, network := range m.webhookCIDRs {
				if network.Contains(ip) {
					return true, "trusted_webhook_cidr"
				}
			}
		}
	}
	return false, ""
}

func parseRequestIP(r *http.Request) net.IP {
	if r == nil {
		return nil
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil || host == "" {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		return nil
	}
	return net.ParseIP(host)
}
