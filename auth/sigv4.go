package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/switchboard"
	"github.com/sagarc03/switchboard/keybackend"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"

	credentialTerminator = "aws4_request"
	unsignedPayload      = "UNSIGNED-PAYLOAD"
)

// Verifier checks AWS Signature V4 presigned URLs.
type Verifier struct {
	Region  string
	Service string
	Store   keybackend.SecretStore

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewVerifier returns a verifier for one region and service.
func NewVerifier(region, service string, store keybackend.SecretStore) *Verifier {
	return &Verifier{Region: region, Service: service, Store: store}
}

// Scheme implements Authenticator.
func (v *Verifier) Scheme() string { return "presigned" }

// Challenge implements Authenticator. Presigned URLs have no challenge.
func (v *Verifier) Challenge() string { return "" }

// Applies implements Authenticator.
func (v *Verifier) Applies(r *switchboard.Request) bool {
	return r.Query.Has("X-Amz-Signature") || r.Query.Has("X-Amz-Algorithm")
}

// Authenticate implements Authenticator.
func (v *Verifier) Authenticate(r *switchboard.Request) (string, error) {
	headers := r.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Host", r.Host)
	return v.Verify(r.Method, r.Path, r.Query, headers)
}

// Verify checks the X-Amz-* parameters in query and returns the access key
// that signed the request. Every failure wraps switchboard.ErrUnauthorized.
func (v *Verifier) Verify(method, path string, query url.Values, headers http.Header) (string, error) {
	p, err := parseSignatureParams(query)
	if err != nil {
		return "", err
	}
	if err := v.validate(p); err != nil {
		return "", err
	}

	secretKey, err := v.Store.Lookup(p.accessKey)
	if err != nil {
		return "", fmt.Errorf("invalid access key: %w", switchboard.ErrUnauthorized)
	}

	want := signature(secretKey, method, path, query, headers, p.requestTime, p.region, p.service, p.signedHeaders)
	if !hmac.Equal([]byte(want), []byte(p.signature)) {
		return "", fmt.Errorf("signature mismatch: %w", switchboard.ErrUnauthorized)
	}
	return p.accessKey, nil
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

type signatureParams struct {
	algorithm     string
	accessKey     string
	dateStamp     string
	region        string
	service       string
	requestTime   time.Time
	expires       int
	signedHeaders string
	signature     string
}

func parseSignatureParams(query url.Values) (*signatureParams, error) {
	algorithm := query.Get("X-Amz-Algorithm")
	credential := query.Get("X-Amz-Credential")
	date := query.Get("X-Amz-Date")
	expiresRaw := query.Get("X-Amz-Expires")
	signedHeaders := query.Get("X-Amz-SignedHeaders")
	sig := query.Get("X-Amz-Signature")

	if algorithm == "" || credential == "" || date == "" ||
		expiresRaw == "" || signedHeaders == "" || sig == "" {
		return nil, fmt.Errorf("missing required signature parameters: %w", switchboard.ErrUnauthorized)
	}

	requestTime, err := time.Parse(DateTimeFormat, date)
	if err != nil {
		return nil, fmt.Errorf("invalid X-Amz-Date format: %w", switchboard.ErrUnauthorized)
	}

	expires, err := strconv.Atoi(expiresRaw)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("invalid X-Amz-Expires: must be between 1 and %d: %w", MaxExpiresSeconds, switchboard.ErrUnauthorized)
	}

	parts := strings.Split(credential, "/")
	if len(parts) != 5 || parts[0] == "" {
		return nil, fmt.Errorf("invalid X-Amz-Credential format: %w", switchboard.ErrUnauthorized)
	}
	if parts[4] != credentialTerminator {
		return nil, fmt.Errorf("invalid credential terminator: expected %s: %w", credentialTerminator, switchboard.ErrUnauthorized)
	}

	return &signatureParams{
		algorithm:     algorithm,
		accessKey:     parts[0],
		dateStamp:     parts[1],
		region:        parts[2],
		service:       parts[3],
		requestTime:   requestTime,
		expires:       expires,
		signedHeaders: signedHeaders,
		signature:     sig,
	}, nil
}

func (v *Verifier) validate(p *signatureParams) error {
	if p.algorithm != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, p.algorithm, switchboard.ErrUnauthorized)
	}
	if v.now().After(p.requestTime.Add(time.Duration(p.expires) * time.Second)) {
		return fmt.Errorf("signature expired: %w", switchboard.ErrUnauthorized)
	}
	if p.dateStamp != p.requestTime.Format(DateFormat) {
		return fmt.Errorf("credential date mismatch: %w", switchboard.ErrUnauthorized)
	}
	if p.region != v.Region {
		return fmt.Errorf("region mismatch: expected %s, got %s: %w", v.Region, p.region, switchboard.ErrUnauthorized)
	}
	if p.service != v.Service {
		return fmt.Errorf("service mismatch: expected %s, got %s: %w", v.Service, p.service, switchboard.ErrUnauthorized)
	}
	return nil
}

// Presigner produces presigned URLs for one access key.
type Presigner struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Presign returns query with the X-Amz-* parameters added, signing method,
// path and the host header.
func (p *Presigner) Presign(method, host, path string, query url.Values, expires time.Duration) (url.Values, error) {
	secs := int(expires / time.Second)
	if secs <= 0 || secs > MaxExpiresSeconds {
		return nil, fmt.Errorf("expires %s out of range: %w", expires, switchboard.ErrInvalidInput)
	}
	if p.AccessKey == "" || p.SecretKey == "" {
		return nil, fmt.Errorf("presigner needs an access key and secret: %w", switchboard.ErrInvalidInput)
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	t := now().UTC()

	out := url.Values{}
	for k, v := range query {
		out[k] = slices.Clone(v)
	}
	out.Set("X-Amz-Algorithm", SignatureAlgorithm)
	out.Set("X-Amz-Credential", strings.Join([]string{p.AccessKey, t.Format(DateFormat), p.Region, p.Service, credentialTerminator}, "/"))
	out.Set("X-Amz-Date", t.Format(DateTimeFormat))
	out.Set("X-Amz-Expires", strconv.Itoa(secs))
	out.Set("X-Amz-SignedHeaders", "host")
	out.Del("X-Amz-Signature")

	headers := http.Header{"Host": []string{host}}
	out.Set("X-Amz-Signature", signature(p.SecretKey, method, path, out, headers, t, p.Region, p.Service, "host"))
	return out, nil
}

func signature(secretKey, method, path string, query url.Values, headers http.Header, t time.Time, region, service, signedHeaders string) string {
	dateStamp := t.Format(DateFormat)
	canonical := strings.Join([]string{
		method,
		path,
		canonicalQuery(query),
		canonicalHeaders(headers, signedHeaders),
		signedHeaders,
		unsignedPayload,
	}, "\n")

	scope := strings.Join([]string{dateStamp, region, service, credentialTerminator}, "/")
	stringToSign := strings.Join([]string{
		SignatureAlgorithm,
		t.Format(DateTimeFormat),
		scope,
		sha256Hex(canonical),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	key = hmacSHA256(key, []byte(region))
	key = hmacSHA256(key, []byte(service))
	key = hmacSHA256(key, []byte(credentialTerminator))
	return hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))
}

// canonicalHeaders renders the signed headers sorted, one "name:value\n" each.
func canonicalHeaders(headers http.Header, signedHeaders string) string {
	names := strings.Split(signedHeaders, ";")
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(headers.Get(name)))
		b.WriteByte('\n')
	}
	return b.String()
}

func canonicalQuery(query url.Values) string {
	params := make(url.Values, len(query))
	for k, v := range query {
		if k != "X-Amz-Signature" {
			params[k] = v
		}
	}
	return params.Encode()
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
