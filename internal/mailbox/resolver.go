package mailbox

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultPort is the implicit-TLS IMAP port
const DefaultPort = "993"

// Common IMAP servers for popular email providers
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"msn.com":        "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"yahoo.co.uk":    "imap.mail.yahoo.com:993",
	"yandex.ru":      "imap.yandex.ru:993",
	"yandex.com":     "imap.yandex.com:993",
	"mail.ru":        "imap.mail.ru:993",
	"bk.ru":          "imap.mail.ru:993",
	"list.ru":        "imap.mail.ru:993",
	"inbox.ru":       "imap.mail.ru:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"mac.com":        "imap.mail.me.com:993",
	"aol.com":        "imap.aol.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"protonmail.com": "127.0.0.1:1143", // ProtonMail Bridge
	"proton.me":      "127.0.0.1:1143",
	"fastmail.com":   "imap.fastmail.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"gmx.de":         "imap.gmx.net:993",
	"web.de":         "imap.web.de:993",
	"t-online.de":    "secureimap.t-online.de:993",
	"rambler.ru":     "imap.rambler.ru:993",
}

// ResolveServer returns the host:port to dial for an account.
// An explicit domain wins; the port defaults to 993. Without a domain the
// server is derived from the username's mail domain.
func ResolveServer(domain, username string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain != "" {
		if _, _, err := net.SplitHostPort(domain); err == nil {
			return domain, nil
		}
		return net.JoinHostPort(strings.Trim(domain, "[]"), DefaultPort), nil
	}

	mailDomain := GetDomainFromEmail(username)
	if mailDomain == "" {
		return "", fmt.Errorf("cannot resolve IMAP server: no domain and %q is not an email address", username)
	}

	// Check known providers first
	if server, ok := knownIMAPServers[mailDomain]; ok {
		return server, nil
	}

	// Try common IMAP server patterns
	for _, host := range []string{"imap." + mailDomain, "mail." + mailDomain, mailDomain} {
		if reachable(host) {
			return net.JoinHostPort(host, DefaultPort), nil
		}
	}

	if server, err := resolveViaMX(mailDomain); err == nil {
		return server, nil
	}

	// Default fallback
	return net.JoinHostPort("imap."+mailDomain, DefaultPort), nil
}

// Overridden in tests
var (
	reachable = checkIMAPServer
	lookupMX  = net.LookupMX
)

// checkIMAPServer checks if an IMAP server accepts connections on 993
func checkIMAPServer(host string) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, DefaultPort), 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveViaMX derives the IMAP server from the primary MX host,
// e.g. mx.example.com -> imap.example.com
func resolveViaMX(domain string) (string, error) {
	records, err := lookupMX(domain)
	if err != nil || len(records) == 0 {
		return "", fmt.Errorf("no MX records found for %s", domain)
	}

	mxHost := strings.TrimSuffix(records[0].Host, ".")
	if _, base, ok := strings.Cut(mxHost, "."); ok {
		for _, host := range []string{"imap." + base, "mail." + base} {
			if reachable(host) {
				return net.JoinHostPort(host, DefaultPort), nil
			}
		}
	}

	return "", fmt.Errorf("could not derive IMAP server from MX %s", mxHost)
}

// GetDomainFromEmail extracts domain from email address
func GetDomainFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
