package dhcp

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rgnets/wlanpi-netctl/internal/domain"
	"github.com/rgnets/wlanpi-netctl/internal/log"
	"github.com/rgnets/wlanpi-netctl/internal/utils"
)

// leaseDateLayout is the timestamp form dhclient writes into lease files,
// after the leading day-of-week digit ("2 2026/08/25 10:00:00").
const leaseDateLayout = "2006/01/02 15:04:05"

// LeaseParser reads one interface's dhclient lease file. The parser itself is
// stateless; every LatestLease call re-reads the file, so a renegotiation by
// the client is picked up without any notification channel.
type LeaseParser struct {
	iface string
	path  string
}

// NewLeaseParser creates a parser bound to an interface and its lease file.
func NewLeaseParser(iface, path string) *LeaseParser {
	return &LeaseParser{iface: iface, path: path}
}

// Path returns the lease file location the parser reads.
func (p *LeaseParser) Path() string {
	return p.path
}

// LatestLease parses the lease file and returns the most recent lease block.
// A missing file means no lease yet and returns (nil, nil); dhclient appends
// to the file, so the last block is the current lease.
func (p *LeaseParser) LatestLease() (*domain.DHCPLease, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("[%s] No lease file at %s", p.iface, p.path)
			return nil, nil
		}
		return nil, err
	}

	blocks := splitLeaseBlocks(string(content))
	if len(blocks) == 0 {
		return nil, nil
	}

	lease := parseLeaseBlock(blocks[len(blocks)-1])
	if lease.Interface == "" {
		lease.Interface = p.iface
	}
	return lease, nil
}

// splitLeaseBlocks extracts the body of every "lease { ... }" block.
func splitLeaseBlocks(content string) []string {
	var blocks []string
	rest := content
	for {
		start := strings.Index(rest, "lease {")
		if start == -1 {
			return blocks
		}
		rest = rest[start+len("lease {"):]
		end := strings.Index(rest, "}")
		if end == -1 {
			// Truncated trailing block, likely a write in progress.
			return blocks
		}
		blocks = append(blocks, rest[:end])
		rest = rest[end+1:]
	}
}

func parseLeaseBlock(block string) *domain.DHCPLease {
	lease := &domain.DHCPLease{Options: make(map[string]string)}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "interface "):
			lease.Interface = unquote(strings.TrimPrefix(line, "interface "))

		case strings.HasPrefix(line, "fixed-address "):
			if addr := strings.TrimPrefix(line, "fixed-address "); utils.IsIPv4(addr) {
				lease.FixedAddress = addr
			}

		case strings.HasPrefix(line, "option "):
			key, value, ok := strings.Cut(strings.TrimPrefix(line, "option "), " ")
			if !ok {
				continue
			}
			lease.Options[normalizeOptionKey(key)] = unquote(strings.TrimSpace(value))

		case strings.HasPrefix(line, "renew "):
			lease.Renew = parseLeaseDate(strings.TrimPrefix(line, "renew "))

		case strings.HasPrefix(line, "rebind "):
			lease.Rebind = parseLeaseDate(strings.TrimPrefix(line, "rebind "))

		case strings.HasPrefix(line, "expire "):
			lease.Expire = parseLeaseDate(strings.TrimPrefix(line, "expire "))
		}
	}
	return lease
}

// parseLeaseDate handles the three date forms dhclient writes: "never",
// "epoch <seconds>", and "<weekday> YYYY/MM/DD HH:MM:SS" (UTC).
func parseLeaseDate(value string) *domain.LeaseDate {
	value = strings.TrimSpace(value)

	if value == "never" {
		return &domain.LeaseDate{Never: true}
	}

	if rest, ok := strings.CutPrefix(value, "epoch "); ok {
		secs, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			log.Warnf("Unparseable epoch lease date %q: %v", value, err)
			return nil
		}
		return &domain.LeaseDate{Time: time.Unix(secs, 0).UTC()}
	}

	// Strip the leading day-of-week field.
	if _, rest, ok := strings.Cut(value, " "); ok {
		if t, err := time.Parse(leaseDateLayout, strings.TrimSpace(rest)); err == nil {
			return &domain.LeaseDate{Time: t.UTC()}
		}
	}

	log.Warnf("Unparseable lease date %q", value)
	return nil
}

// normalizeOptionKey maps dhclient option names onto stable map keys
// ("domain-name-servers" -> "domain_name_servers").
func normalizeOptionKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), "-", "_")
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
