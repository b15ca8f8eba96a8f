package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	defaultTokenTTL = time.Hour

	// tokenRefreshMargin renews the token this long before it expires.
	tokenRefreshMargin = 5 * time.Minute
)

// tokenSigner issues and caches shared access signatures for one hub.
type tokenSigner struct {
	cs  ConnectionString
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSigner(cs ConnectionString, ttl time.Duration) *tokenSigner {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &tokenSigner{cs: cs, ttl: ttl, now: time.Now}
}

// Token returns a valid SAS token, signing a new one when the cached token
// is within tokenRefreshMargin of expiry.
func (s *tokenSigner) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(tokenRefreshMargin).Before(s.expiry) {
		return s.token
	}

	s.expiry = now.Add(s.ttl)
	s.token = signSAS(s.cs.HostName, s.cs.KeyName, s.cs.Key, s.expiry)
	return s.token
}

// signSAS builds an IoT Hub shared access signature for resourceURI.
func signSAS(resourceURI, keyName string, key []byte, expiry time.Time) string {
	encodedURI := url.QueryEscape(resourceURI)
	se := strconv.FormatInt(expiry.Unix(), 10)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(encodedURI + "\n" + se))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s&skn=%s",
		encodedURI, url.QueryEscape(sig), se, url.QueryEscape(keyName))
}
