package probe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const whoisTimeout = 10 * time.Second

// DomainOptions configures a DomainProbe run.
type DomainOptions struct {
	CheckWhois  bool
	CheckDNS    bool
	CheckExpiry bool
	DNSServers  []string
	Timeout     time.Duration
}

// DomainResult is the successful outcome of a domain probe.
type DomainResult struct {
	ResolvedIP string
}

// ExpiryThresholds are the day-remaining values that trigger a
// DomainExpiring alert, by exact equality rather than "within".
var ExpiryThresholds = map[int]bool{30: true, 14: true, 7: true}

// ProbeDomain runs the domain availability/expiry/DNS checks for name.
// Whois and DNS failures do not short-circuit each other: a whois
// failure falls through to report the DNS outcome rather than stopping
// early.
func ProbeDomain(ctx context.Context, name string, opts DomainOptions) (DomainResult, Failure) {
	var whoisFailure Failure

	if opts.CheckWhois {
		expiry, err := whoisExpiry(ctx, name)
		if err != nil {
			whoisFailure = NewWhoisFailure(err)
		} else if opts.CheckExpiry {
			days := int(time.Until(expiry).Hours() / 24)
			if ExpiryThresholds[days] {
				return DomainResult{}, NewDomainExpiring(days)
			}
		}
	}

	if opts.CheckDNS && len(opts.DNSServers) > 0 {
		ip, errs := resolveViaServers(ctx, name, opts.DNSServers, opts.Timeout)
		if ip != "" {
			return DomainResult{ResolvedIP: ip}, nil
		}
		return DomainResult{}, NewAllDNSFailed(errs)
	}

	// No DNS checking configured (or no servers): whois result is authoritative,
	// per §4.1's "whois-only mode" edge case.
	if whoisFailure != nil {
		return DomainResult{}, whoisFailure
	}
	return DomainResult{}, nil
}

func resolveViaServers(ctx context.Context, name string, servers []string, timeout time.Duration) (string, map[string]error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	errs := make(map[string]error, len(servers))
	client := &dns.Client{Timeout: timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)

	for _, server := range servers {
		addr := server
		if !strings.Contains(addr, ":") {
			addr = net.JoinHostPort(addr, "53")
		}
		resp, _, err := client.ExchangeContext(ctx, msg, addr)
		if err != nil {
			errs[server] = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			errs[server] = fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A.String(), nil
			}
		}
		errs[server] = fmt.Errorf("no A record in response")
	}
	return "", errs
}

var whoisExpiryPattern = regexp.MustCompile(`(?i)(?:registry expiry date|expir\w*\s*(?:date|on)?)\s*:\s*([0-9T:./Z+-]+)`)

// whoisExpiry performs a raw WHOIS lookup (TCP port 43) and extracts the
// registration expiry. No WHOIS client library exists in the dependency
// pack, so this speaks the plaintext protocol directly per RFC 3912: one
// line query, connection closed by server after the response.
func whoisExpiry(ctx context.Context, domainName string) (time.Time, error) {
	server := whoisServerFor(domainName)
	d := net.Dialer{Timeout: whoisTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(server, "43"))
	if err != nil {
		return time.Time{}, fmt.Errorf("connecting to whois server %s: %w", server, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(whoisTimeout)) //nolint:errcheck
	if _, err := fmt.Fprintf(conn, "%s\r\n", domainName); err != nil {
		return time.Time{}, fmt.Errorf("writing whois query: %w", err)
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return time.Time{}, fmt.Errorf("reading whois response: %w", err)
	}

	match := whoisExpiryPattern.FindStringSubmatch(sb.String())
	if match == nil {
		return time.Time{}, fmt.Errorf("no expiry date found in whois response")
	}
	return parseWhoisTime(match[1])
}

func parseWhoisTime(raw string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.999Z07:00",
		"2006-01-02",
		"02-Jan-2006",
		"2006.01.02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized whois date format: %q", raw)
}

// whoisServerFor returns the registry WHOIS server for a domain's TLD.
// A handful of common TLDs are mapped directly; unknown TLDs fall back
// to IANA's top-level referral server, which redirects per RFC 3912
// (the first hop's response may itself need following in production;
// this implementation takes the first matching expiry line it finds).
func whoisServerFor(domainName string) string {
	parts := strings.Split(strings.TrimSuffix(domainName, "."), ".")
	tld := strings.ToLower(parts[len(parts)-1])
	switch tld {
	case "com", "net":
		return "whois.verisign-grs.com"
	case "org":
		return "whois.pir.org"
	case "io":
		return "whois.nic.io"
	case "dev", "app":
		return "whois.nic.google"
	default:
		return "whois.iana.org"
	}
}
