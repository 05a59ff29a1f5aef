package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerID        = "webhook-id"
	headerTimestamp = "webhook-timestamp"
	headerSignature = "webhook-signature"

	// DefaultTolerance bounds the accepted clock skew on the signed timestamp.
	DefaultTolerance = 5 * time.Minute
)

// SignatureError marks verification failures. It is the only error class the
// HTTP surface maps to 401; everything else gets a business outcome.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "webhook signature rejected: " + e.Reason
}

// Payload is a verified provider notification.
type Payload struct {
	EventID      string          `json:"-"`
	ResourceType string          `json:"resource_type"`
	ProviderRef  string          `json:"provider_ref"`
	Status       string          `json:"status"`
	Raw          json.RawMessage `json:"-"`
}

// Verifier checks the provider's timestamped HMAC scheme: each delivery is
// signed as sha256(secret, "<id>.<timestamp>.<body>") and presented as one or
// more space-separated "v1,<base64>" entries.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

func (v *Verifier) Verify(body []byte, headers http.Header) (*Payload, error) {
	id := headers.Get(headerID)
	ts := headers.Get(headerTimestamp)
	sigHeader := headers.Get(headerSignature)
	if id == "" || ts == "" || sigHeader == "" {
		return nil, &SignatureError{Reason: "missing signature headers"}
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, &SignatureError{Reason: "malformed timestamp"}
	}
	sent := time.Unix(unix, 0)
	if drift := v.now().Sub(sent); drift > v.tolerance || drift < -v.tolerance {
		return nil, &SignatureError{Reason: "timestamp outside tolerance"}
	}

	expected := v.sign(id, ts, body)
	if !anySignatureMatches(sigHeader, expected) {
		return nil, &SignatureError{Reason: "no matching signature"}
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("webhook body: %w", err)
	}
	p.EventID = id
	p.Raw = append(json.RawMessage(nil), body...)
	return &p, nil
}

func (v *Verifier) sign(id, ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign produces the signature header value for a delivery. Exposed for tests
// and outbound use.
func (v *Verifier) Sign(id string, sent time.Time, body []byte) string {
	ts := strconv.FormatInt(sent.Unix(), 10)
	return "v1," + base64.StdEncoding.EncodeToString(v.sign(id, ts, body))
}

func anySignatureMatches(header string, expected []byte) bool {
	matched := false
	for _, entry := range strings.Fields(header) {
		version, encoded, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		candidate, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		// No early return: scan every entry so timing does not reveal which
		// one matched.
		if hmac.Equal(candidate, expected) {
			matched = true
		}
	}
	return matched
}
