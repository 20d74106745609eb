package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wyfcoding/storefront/internal/payment/domain"
)

// SignatureHeader webhook 签名请求头
const SignatureHeader = "Stripe-Signature"

// WebhookVerifier HMAC-SHA256 签名校验，签名内容为 "{t}.{payload}"
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier 创建校验器，tolerance 为 0 时不校验时间戳
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

type eventBody struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object sessionBody `json:"object"`
	} `json:"data"`
}

// Verify 校验签名并解析事件；任一校验失败都返回 ErrInvalidSignature
func (v *WebhookVerifier) Verify(payload []byte, header string) (*domain.Event, error) {
	if len(v.secret) == 0 || header == "" {
		return nil, domain.ErrInvalidSignature
	}

	timestamp, signatures := parseHeader(header)
	if timestamp == "" || len(signatures) == 0 {
		return nil, domain.ErrInvalidSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}
	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(ts, 0))
		if age > v.tolerance || age < -v.tolerance {
			return nil, fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
		}
	}

	expected := computeSignature(v.secret, timestamp, payload)
	matched := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, domain.ErrInvalidSignature
	}

	var body eventBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload", domain.ErrInvalidSignature)
	}
	if body.ID == "" || body.Type == "" {
		return nil, fmt.Errorf("%w: event without id or type", domain.ErrInvalidSignature)
	}
	return &domain.Event{
		ID:      body.ID,
		Type:    body.Type,
		Created: time.Unix(body.Created, 0).UTC(),
		Session: *body.Data.Object.toDomain(),
	}, nil
}

// Sign 生成签名请求头，用于测试与本地联调
func Sign(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(computeSignature([]byte(secret), ts, payload))
}

func parseHeader(header string) (string, []string) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	return timestamp, signatures
}

func computeSignature(secret []byte, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
