package helper

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"path"
	"regexp"
	"strings"
	"time"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func GetTimeNow() time.Time {
	return time.Now().UTC()
}

// RandomToken returns n random bytes hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomSuffix returns a lower-case alphanumeric string of length n.
func RandomSuffix(n int) string {
	var sb strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			sb.WriteByte(alphabet[i%len(alphabet)])
			continue
		}
		sb.WriteByte(alphabet[v.Int64()])
	}
	return sb.String()
}

// ObjectName builds "<folder>/<unixMillis>_<random>.<ext>" for an uploaded file.
func ObjectName(folder, fileName string, now time.Time) string {
	if folder == "" {
		folder = "public"
	}
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d_%s.%s", folder, now.UnixMilli(), RandomSuffix(10), strings.ToLower(ext))
}

func IsEmail(candidate string) bool {
	return emailPattern.MatchString(candidate)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
