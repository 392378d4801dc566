package webserver

import (
	"context"
	"crypto/tls"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const tlsCheckInterval = 5 * time.Minute

// TLSReloader serves the current certificate and picks up renewed files.
type TLSReloader struct {
	certFile    string
	keyFile     string
	cert        *tls.Certificate
	mu          sync.RWMutex
	lastModCert time.Time
	lastModKey  time.Time
	log         *zap.Logger
}

func NewTLSReloader(certFile, keyFile string, log *zap.Logger) (*TLSReloader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reloader := &TLSReloader{
		certFile: certFile,
		keyFile:  keyFile,
		log:      log.Named("tls"),
	}

	if err := reloader.reload(); err != nil {
		return nil, err
	}
	return reloader, nil
}

func (r *TLSReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}

	certInfo, _ := os.Stat(r.certFile)
	keyInfo, _ := os.Stat(r.keyFile)

	r.mu.Lock()
	r.cert = &cert
	if certInfo != nil {
		r.lastModCert = certInfo.ModTime()
	}
	if keyInfo != nil {
		r.lastModKey = keyInfo.ModTime()
	}
	r.mu.Unlock()

	r.log.Info("TLS certificates reloaded")
	return nil
}

// Watch reloads the pair whenever either file changes, until ctx is done.
func (r *TLSReloader) Watch(ctx context.Context) {
	ticker := time.NewTicker(tlsCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkFiles()
		}
	}
}

func (r *TLSReloader) checkFiles() {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		r.log.Warn("failed to stat cert file", zap.Error(err))
		return
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		r.log.Warn("failed to stat key file", zap.Error(err))
		return
	}

	r.mu.RLock()
	changed := certInfo.ModTime().After(r.lastModCert) || keyInfo.ModTime().After(r.lastModKey)
	r.mu.RUnlock()

	if changed {
		r.log.Info("certificate files changed, reloading")
		if err := r.reload(); err != nil {
			r.log.Error("failed to reload certificates", zap.Error(err))
		}
	}
}

func (r *TLSReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

func (r *TLSReloader) GetConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}
