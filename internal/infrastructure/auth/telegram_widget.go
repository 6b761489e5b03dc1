package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
)

// MaxWidgetAge is how old auth_date may be.
const MaxWidgetAge = 24 * time.Hour

// WidgetData is the payload of the Telegram Login Widget.
type WidgetData struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// DataCheckString builds the sorted "key=value" lines that are signed.
func (d WidgetData) DataCheckString() string {
	lines := []string{
		"auth_date=" + strconv.FormatInt(d.AuthDate, 10),
		"first_name=" + d.FirstName,
		"id=" + strconv.FormatInt(d.ID, 10),
	}
	if d.LastName != "" {
		lines = append(lines, "last_name="+d.LastName)
	}
	if d.Username != "" {
		lines = append(lines, "username="+d.Username)
	}
	if d.PhotoURL != "" {
		lines = append(lines, "photo_url="+d.PhotoURL)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// WidgetVerifier checks widget signatures with key = sha256(bot token).
type WidgetVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewWidgetVerifier creates a verifier for the bot token.
func NewWidgetVerifier(botToken string) *WidgetVerifier {
	sum := sha256.Sum256([]byte(botToken))
	return &WidgetVerifier{secret: sum[:], now: time.Now}
}

// Sign computes the expected hash, hex encoded.
func (v *WidgetVerifier) Sign(d WidgetData) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(d.DataCheckString()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and that auth_date is less than a day old.
func (v *WidgetVerifier) Verify(d WidgetData) error {
	expected := v.Sign(d)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(d.Hash))) {
		return shared.ErrInvalidSignature
	}
	if v.now().Sub(time.Unix(d.AuthDate, 0)) >= MaxWidgetAge {
		return shared.ErrAuthDataExpired
	}
	return nil
}
