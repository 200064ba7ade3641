package history

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Page tokens are opaque to clients. Internally they encode the offset of the
// next page; the prefix guards against tokens minted for other endpoints.
const tokenPrefix = "hist:"

func encodeToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(tokenPrefix + strconv.Itoa(offset)))
}

func decodeToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	s, ok := strings.CutPrefix(string(raw), tokenPrefix)
	if !ok {
		return 0, ErrInvalidToken
	}
	offset, err := strconv.Atoi(s)
	if err != nil || offset < 0 {
		return 0, ErrInvalidToken
	}
	return offset, nil
}
