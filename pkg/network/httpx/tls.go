package httpx

import (
	"crypto/tls"

	"golang.org/x/crypto/acme/autocert"
)

// autoCert builds a TLS config backed by ACME-issued certificates,
// cached on disk between restarts. An empty domain accepts any host.
func autoCert(cacheDir, domain string) *tls.Config {
	manager := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache(cacheDir),
	}
	if domain != "" {
		manager.HostPolicy = autocert.HostWhitelist(domain)
	}
	return manager.TLSConfig()
}
