package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long the key pair must stay quiet before a reload.
// Rotations rewrite both files; reloading after the first one would pair
// a new certificate with the old key.
const settleDelay = 300 * time.Millisecond

// KeyPair serves a client certificate and, once watched, reloads it when
// its files change. A failed reload keeps the previous certificate.
type KeyPair struct {
	certFile, keyFile string
	logger            *slog.Logger
	cert              atomic.Pointer[tls.Certificate]

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	timer   *time.Timer
	settle  time.Duration
	stopped chan struct{}
}

// LoadKeyPair reads the key pair once.
func LoadKeyPair(certFile, keyFile string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp := &KeyPair{certFile: certFile, keyFile: keyFile, logger: logger, settle: settleDelay}
	if err := kp.load(); err != nil {
		return nil, err
	}
	return kp, nil
}

// GetClientCertificate is installed as tls.Config.GetClientCertificate.
func (kp *KeyPair) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return kp.cert.Load(), nil
}

func (kp *KeyPair) load() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	kp.cert.Store(&cert)
	return nil
}

// Watch starts following both files. Calling it twice is a no-op.
func (kp *KeyPair) Watch() error {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if kp.fs != nil {
		return nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	// Directories, not files: editors and secret mounts replace files by rename.
	for _, dir := range []string{filepath.Dir(kp.certFile), filepath.Dir(kp.keyFile)} {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}
	kp.fs = fs
	kp.stopped = make(chan struct{})
	go kp.loop(fs, kp.stopped)
	return nil
}

func (kp *KeyPair) loop(fs *fsnotify.Watcher, stopped chan struct{}) {
	defer close(stopped)
	names := map[string]bool{
		filepath.Base(kp.certFile): true,
		filepath.Base(kp.keyFile):  true,
	}
	for {
		select {
		case ev, ok := <-fs.Events:
			if !ok {
				return
			}
			if names[filepath.Base(ev.Name)] && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				kp.schedule()
			}
		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			kp.logger.Warn("client certificate watch error", "error", err)
		}
	}
}

func (kp *KeyPair) schedule() {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if kp.fs == nil {
		return
	}
	if kp.timer != nil {
		kp.timer.Stop()
	}
	kp.timer = time.AfterFunc(kp.settle, func() {
		if err := kp.load(); err != nil {
			kp.logger.Error("client certificate reload failed, keeping previous", "error", err)
			return
		}
		kp.logger.Info("client certificate reloaded", "cert_file", kp.certFile)
	})
}

// Close stops watching. It is safe to call more than once and on a key
// pair that was never watched.
func (kp *KeyPair) Close() error {
	kp.mu.Lock()
	fs, stopped := kp.fs, kp.stopped
	kp.fs = nil
	if kp.timer != nil {
		kp.timer.Stop()
	}
	kp.mu.Unlock()

	if fs == nil {
		return nil
	}
	err := fs.Close()
	<-stopped
	return err
}
